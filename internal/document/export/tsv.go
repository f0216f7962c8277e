// Package export renders annotated documents into the flat formats
// downstream pipelines consume: entity-per-row TSV and verticalized
// CoNLL.
package export

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/tokenizer"
)

var tsvHeader = []string{
	"DOCUMENT ID",
	"TYPE",
	"START POSITION",
	"END POSITION",
	"MATCHED TERM",
	"PREFERRED FORM",
	"ENTITY ID",
	"ZONE",
	"SENTENCE ID",
	"ORIGIN",
}

// TSVOptions controls the TSV rendering.
type TSVOptions struct {
	// Header prepends a column-name row.
	Header bool
	// AllTokens additionally emits a sparse row for every token not
	// covered by an entity.
	AllTokens bool
	// ExtraNames labels the extra concept fields in the header; its
	// length also sets the number of padding columns on sparse rows.
	ExtraNames []string
	// Tokenizer segments sentences in AllTokens mode. Defaults to the
	// standard word tokenizer.
	Tokenizer *tokenizer.Tokenizer
}

// TSVWriter writes one row per entity, with document, zone and
// sentence context repeated on every row.
type TSVWriter struct {
	w    *csv.Writer
	opts TSVOptions
}

func NewTSVWriter(w io.Writer, opts TSVOptions) *TSVWriter {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if opts.Tokenizer == nil {
		opts.Tokenizer = tokenizer.New()
	}
	return &TSVWriter{w: cw, opts: opts}
}

func (t *TSVWriter) WriteCollection(coll *document.Collection) error {
	if err := t.header(); err != nil {
		return err
	}
	for _, a := range coll.Articles {
		if err := t.article(a); err != nil {
			return err
		}
	}
	return t.flush()
}

func (t *TSVWriter) WriteArticle(a *document.Article) error {
	if err := t.header(); err != nil {
		return err
	}
	if err := t.article(a); err != nil {
		return err
	}
	return t.flush()
}

func (t *TSVWriter) header() error {
	if !t.opts.Header {
		return nil
	}
	return t.w.Write(append(append([]string(nil), tsvHeader...), t.opts.ExtraNames...))
}

func (t *TSVWriter) flush() error {
	t.w.Flush()
	return t.w.Error()
}

func (t *TSVWriter) article(a *document.Article) error {
	sentNum := 0
	for _, sec := range a.Sections {
		for _, sent := range sec.Sentences {
			sentNum++
			sentID := "S" + strconv.Itoa(sentNum)
			if err := t.sentence(a.ID, sec.Type, sentID, sent); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *TSVWriter) sentence(docID, zone, sentID string, sent *document.Sentence) error {
	var toks []tokenizer.Token
	ti := 0
	if t.opts.AllTokens {
		toks = t.opts.Tokenizer.Tokenize(sent.Text)
	}

	// sparse writes a row for every token inside the window that has
	// not been written yet. A token that reaches past the window end
	// is left for the next call.
	sparse := func(start, end int) error {
		if !t.opts.AllTokens || start >= end {
			return nil
		}
		for ti < len(toks) {
			ts := sent.Start + toks[ti].Start
			te := sent.Start + toks[ti].End
			if ts >= end {
				break
			}
			if te > start {
				row := []string{
					docID, "",
					strconv.Itoa(ts), strconv.Itoa(te),
					toks[ti].Text,
					"", "", "", sentID, "",
				}
				row = append(row, make([]string, len(t.opts.ExtraNames))...)
				if err := t.w.Write(row); err != nil {
					return err
				}
			}
			ti++
		}
		return nil
	}

	lastEnd := 0
	for i := range sent.Entities {
		e := &sent.Entities[i]
		if err := sparse(lastEnd, e.Start); err != nil {
			return err
		}
		row := []string{
			docID,
			e.Type(),
			strconv.Itoa(e.Start),
			strconv.Itoa(e.End),
			e.Text,
			e.PreferredForm(),
			strconv.Itoa(e.ID),
			zone,
			sentID,
			e.Resource(),
		}
		row = append(row, e.Extra()...)
		if err := t.w.Write(row); err != nil {
			return err
		}
		if e.End > lastEnd {
			lastEnd = e.End
		}
	}
	return sparse(lastEnd, math.MaxInt)
}
