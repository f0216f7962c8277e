// Package executor runs annotation requests across one or more
// terminologies. Each terminology gets its own session and scans the
// document's sentences in order (abbreviation learning needs the
// sequential pass); passes run concurrently and their per-sentence
// results are position-merged afterwards.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	doc "github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/postfilter"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/recognizer/merger"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/recognizer/terminology"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/metrics"
)

// Executor annotates documents with sessions borrowed from a terminology
// manager. It caps the number of concurrently running annotations.
type Executor struct {
	manager *terminology.Manager
	metrics *metrics.Metrics
	sem     chan struct{}
	logger  *slog.Logger
}

// New creates an Executor. maxConcurrent bounds simultaneous Annotate
// calls; zero or negative means no bound. m may be nil.
func New(manager *terminology.Manager, m *metrics.Metrics, maxConcurrent int) *Executor {
	var sem chan struct{}
	if maxConcurrent > 0 {
		sem = make(chan struct{}, maxConcurrent)
	}
	return &Executor{
		manager: manager,
		metrics: m,
		sem:     sem,
		logger:  slog.Default().With("component", "annotation-executor"),
	}
}

// Annotate runs every named terminology over the article's sentences,
// merges the results per sentence in position order with IDs continuing
// across the whole article, and applies the postfilters. The article is
// modified in place.
func (e *Executor) Annotate(ctx context.Context, article *doc.Article, names []string, filters []postfilter.Filter) error {
	if e.sem != nil {
		select {
		case e.sem <- struct{}{}:
			defer func() { <-e.sem }()
		case <-ctx.Done():
			return fmt.Errorf("waiting for annotation slot: %w", ctx.Err())
		}
	}

	var sents []*doc.Sentence
	for _, sec := range article.Sections {
		sents = append(sents, sec.Sentences...)
	}
	if len(sents) == 0 || len(names) == 0 {
		return nil
	}

	// perTerm[t][s] holds terminology t's entities for sentence s.
	perTerm := make([][][]doc.Entity, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for ti, name := range names {
		ti, name := ti, name
		g.Go(func() error {
			sess, release, err := e.manager.Acquire(gctx, name)
			if err != nil {
				return err
			}
			defer release()

			perSent := make([][]doc.Entity, len(sents))
			for si, sent := range sents {
				matches := sess.Recognize(sent.Text)
				if len(matches) == 0 {
					continue
				}
				entities := make([]doc.Entity, 0, len(matches))
				for _, m := range matches {
					entry := m.Entry
					entities = append(entities, doc.Entity{
						Text:        sent.Text[m.Start:m.End],
						Start:       sent.Start + m.Start,
						End:         sent.Start + m.End,
						Terminology: name,
						Entry:       &entry,
					})
				}
				perSent[si] = entities
			}
			perTerm[ti] = perSent

			if e.metrics != nil {
				if learned := sess.Learned(); learned > 0 {
					e.metrics.AbbreviationsLearned.WithLabelValues(name).Add(float64(learned))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	next := article.NextEntityID()
	lists := make([][]doc.Entity, len(names))
	for si := range sents {
		for ti := range names {
			lists[ti] = perTerm[ti][si]
		}
		merged := merger.Merge(lists)
		for i := range merged {
			merged[i].ID = next
			next++
		}
		sents[si].Entities = merged
	}

	postfilter.Apply(article, filters)

	if e.metrics != nil {
		for _, ent := range article.Entities() {
			e.metrics.EntitiesMatchedTotal.WithLabelValues(ent.Terminology, ent.Type()).Inc()
		}
	}
	return nil
}
