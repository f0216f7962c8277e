// Package annotator runs the background annotation pipeline. Documents
// arriving on the ingest topic are recognized against every ready
// terminology, their annotations replaced in PostgreSQL, and a
// completion event published for the analytics service. The same
// recognition path is exposed over RPC for synchronous callers.
package annotator

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/annotator/store"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/postfilter"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/recognizer/executor"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/recognizer/terminology"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/rpc"
)

// Service wires the recognition engine to storage and eventing.
type Service struct {
	manager   *terminology.Manager
	executor  *executor.Executor
	store     *store.Store
	collector *collector.BatchCollector
	filters   []postfilter.Filter
	metrics   *metrics.Metrics
	logger    *slog.Logger

	docsAnnotated atomic.Int64
	docsFailed    atomic.Int64
}

// New builds a Service. collector may be nil to disable analytics
// events. postfilters names the filters applied to every document.
func New(manager *terminology.Manager, exec *executor.Executor, st *store.Store, coll *collector.BatchCollector, m *metrics.Metrics, postfilters []string) (*Service, error) {
	filters, err := postfilter.Resolve(postfilters)
	if err != nil {
		return nil, fmt.Errorf("resolving postfilters: %w", err)
	}
	return &Service{
		manager:   manager,
		executor:  exec,
		store:     st,
		collector: coll,
		filters:   filters,
		metrics:   m,
		logger:    slog.Default().With("component", "annotator"),
	}, nil
}

// Bootstrap loads every configured terminology and blocks until all are
// ready. Consumers must not start before this returns.
func (s *Service) Bootstrap(ctx context.Context, cfgs []config.TerminologyConfig) error {
	start := time.Now()
	if err := s.manager.Bootstrap(ctx, cfgs); err != nil {
		return fmt.Errorf("bootstrapping terminologies: %w", err)
	}
	s.logger.Info("terminologies ready",
		"count", len(cfgs),
		"elapsed", time.Since(start),
	)
	return nil
}

// AnnotateDocument runs the full pipeline for one ingested document:
// recognize, store, mark, report.
func (s *Service) AnnotateDocument(ctx context.Context, event ingestion.DocumentEvent) error {
	start := time.Now()

	article := buildArticle(event)
	names, err := s.manager.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolving terminologies: %w", err)
	}

	if err := s.executor.Annotate(ctx, article, names, s.filters); err != nil {
		s.failDocument(ctx, event.DocumentID)
		return fmt.Errorf("annotating document %s: %w", event.DocumentID, err)
	}

	rows := store.FromArticle(event.DocumentID, article)
	if err := s.store.Replace(ctx, event.DocumentID, rows); err != nil {
		if s.metrics != nil {
			s.metrics.AnnotationStoresTotal.WithLabelValues("error").Inc()
		}
		s.failDocument(ctx, event.DocumentID)
		return fmt.Errorf("storing annotations for %s: %w", event.DocumentID, err)
	}
	if s.metrics != nil {
		s.metrics.AnnotationStoresTotal.WithLabelValues("ok").Inc()
		s.metrics.DocsAnnotatedTotal.Inc()
	}

	if err := s.store.MarkStatus(ctx, event.DocumentID, "ANNOTATED"); err != nil {
		s.logger.Error("failed to mark document annotated",
			"doc_id", event.DocumentID,
			"error", err,
		)
	}
	s.docsAnnotated.Add(1)

	latency := time.Since(start)
	if s.collector != nil {
		s.collector.Track(event.DocumentID, analytics.DocumentAnnotatedEvent{
			Type:       analytics.EventDocumentAnnotated,
			DocumentID: event.DocumentID,
			TextBytes:  len(event.Title) + len(event.Abstract) + len(event.Body),
			Entities:   len(rows),
			Concepts:   analytics.ConceptsFromEntities(flatten(article)),
			LatencyMs:  latency.Milliseconds(),
			Timestamp:  time.Now().UTC(),
		})
	}

	s.logger.Info("document annotated",
		"doc_id", event.DocumentID,
		"terminologies", len(names),
		"entities", len(rows),
		"latency_ms", latency.Milliseconds(),
	)
	return nil
}

// AnnotateText serves the synchronous RPC path. Either Text or
// DocumentID must be set; a document ID pulls the stored document and
// annotates its full text.
func (s *Service) AnnotateText(ctx context.Context, req rpc.AnnotateRequest) (*rpc.AnnotateResponse, error) {
	start := time.Now()

	var article *document.Article
	switch {
	case req.Text != "":
		article = document.NewArticle(req.DocumentID)
		article.AddSection("text", req.Text)
	case req.DocumentID != "":
		doc, err := s.store.Document(ctx, req.DocumentID)
		if err != nil {
			return nil, err
		}
		article = buildArticle(ingestion.DocumentEvent{
			DocumentID: doc.ID,
			Title:      doc.Title,
			Abstract:   doc.Abstract,
			Body:       doc.Body,
		})
	default:
		return nil, fmt.Errorf("annotate request needs text or document_id")
	}

	names, err := s.manager.Resolve(req.Terminologies)
	if err != nil {
		return nil, err
	}
	filters := s.filters
	if req.Postfilters != nil {
		if filters, err = postfilter.Resolve(req.Postfilters); err != nil {
			return nil, err
		}
	}

	if err := s.executor.Annotate(ctx, article, names, filters); err != nil {
		return nil, err
	}

	return &rpc.AnnotateResponse{
		Entities:  RPCEntities(article),
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Stats reports per-terminology statistics for the Dictionary.Stats RPC.
func (s *Service) Stats(name string) (*rpc.StatsResponse, error) {
	var infos []terminology.Info
	if name != "" {
		info, err := s.manager.Get(name)
		if err != nil {
			return nil, err
		}
		infos = []terminology.Info{info}
	} else {
		infos = s.manager.List()
	}

	resp := &rpc.StatsResponse{
		Terminologies: make([]rpc.TerminologyStats, 0, len(infos)),
	}
	for _, info := range infos {
		st := rpc.TerminologyStats{
			Name:   info.Name,
			Status: string(info.Status),
			Terms:  int64(info.Terms),
			Keys:   int64(info.Keys),
		}
		if !info.LoadedAt.IsZero() {
			st.LoadedAt = info.LoadedAt.Unix()
		}
		if info.Err != nil {
			st.Error = info.Err.Error()
		}
		resp.Terminologies = append(resp.Terminologies, st)
		resp.TotalTerms += st.Terms
	}
	return resp, nil
}

// Reload rebuilds one terminology for the Dictionary.Reload RPC.
func (s *Service) Reload(ctx context.Context, name string, force bool) error {
	return s.manager.Reload(ctx, name, force)
}

// Counts returns how many documents this instance annotated and failed.
func (s *Service) Counts() (annotated, failed int64) {
	return s.docsAnnotated.Load(), s.docsFailed.Load()
}

func (s *Service) failDocument(ctx context.Context, docID string) {
	s.docsFailed.Add(1)
	if err := s.store.MarkStatus(ctx, docID, "FAILED"); err != nil {
		s.logger.Error("failed to mark document failed",
			"doc_id", docID,
			"error", err,
		)
	}
}

// buildArticle assembles the zoned article for a document. The title
// keeps a trailing newline so body offsets match the reconstructed
// plain text.
func buildArticle(event ingestion.DocumentEvent) *document.Article {
	article := document.NewArticle(event.DocumentID)
	if event.Title != "" {
		article.AddSection("title", event.Title+"\n")
	}
	if event.Abstract != "" {
		article.AddSection("abstract", event.Abstract+"\n")
	}
	if event.Body != "" {
		article.AddSection("body", event.Body)
	}
	return article
}

func flatten(article *document.Article) []document.Entity {
	var entities []document.Entity
	for _, sec := range article.Sections {
		for _, sent := range sec.Sentences {
			entities = append(entities, sent.Entities...)
		}
	}
	return entities
}

// RPCEntities flattens an annotated article into the wire entity shape,
// zone and sentence context included.
func RPCEntities(article *document.Article) []rpc.Entity {
	entities := make([]rpc.Entity, 0, 16)
	for _, sec := range article.Sections {
		for _, sent := range sec.Sentences {
			for i := range sent.Entities {
				e := &sent.Entities[i]
				entities = append(entities, rpc.Entity{
					ID:            e.ID,
					Text:          e.Text,
					Start:         e.Start,
					End:           e.End,
					Type:          e.Type(),
					PreferredForm: e.PreferredForm(),
					Resource:      e.Resource(),
					NativeID:      e.NativeID(),
					CUI:           e.CUI(),
					Extra:         e.Extra(),
					Terminology:   e.Terminology,
					SentenceID:    fmt.Sprintf("%d.%d", sec.ID, sent.ID),
					Zone:          sec.Type,
				})
			}
		}
	}
	return entities
}
