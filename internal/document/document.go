// Package document models annotated text as a fixed hierarchy:
// Collection > Article > Section > Sentence, with recognized entities
// anchored at the sentence level. All offsets are byte offsets into
// the article text; sections and sentences carry absolute positions so
// that annotations resolve without re-reading the source.
package document

import (
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/matcher"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/termdict"
)

// Entity links a stretch of text to one concept record. Start and End
// are article offsets; Text is the surface form found there.
// Terminology names the dictionary the match came from; it stays empty
// when a single dictionary annotates the document.
type Entity struct {
	ID          int                 `json:"id"`
	Text        string              `json:"text"`
	Start       int                 `json:"start"`
	End         int                 `json:"end"`
	Terminology string              `json:"terminology,omitempty"`
	Entry       *termdict.TermEntry `json:"entry"`
}

// Accessors for the standard concept fields. They tolerate a missing
// record so that exporters can render partially built documents.

func (e *Entity) Type() string {
	if e.Entry == nil {
		return ""
	}
	return e.Entry.Type
}

func (e *Entity) PreferredForm() string {
	if e.Entry == nil {
		return ""
	}
	return e.Entry.PreferredForm
}

func (e *Entity) Resource() string {
	if e.Entry == nil {
		return ""
	}
	return e.Entry.OriginalResource
}

func (e *Entity) NativeID() string {
	if e.Entry == nil {
		return ""
	}
	return e.Entry.NativeID
}

func (e *Entity) CUI() string {
	if e.Entry == nil {
		return ""
	}
	return e.Entry.CUI
}

func (e *Entity) Extra() []string {
	if e.Entry == nil {
		return nil
	}
	return e.Entry.Extra
}

// SortEntities orders entities by (Start, End), keeping the original
// order of exact ties.
func SortEntities(entities []Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].Start != entities[j].Start {
			return entities[i].Start < entities[j].Start
		}
		return entities[i].End < entities[j].End
	})
}

// Sentence is the annotation unit. Text includes any trailing
// whitespace up to the next sentence, so sentence texts concatenate
// back into the section text.
type Sentence struct {
	ID       int      `json:"id"`
	Text     string   `json:"text"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
	Entities []Entity `json:"entities,omitempty"`
}

// Section is any unit between article and sentence level, such as a
// title, an abstract or a body paragraph.
type Section struct {
	ID        int         `json:"id"`
	Type      string      `json:"type"`
	Start     int         `json:"start"`
	End       int         `json:"end"`
	Sentences []*Sentence `json:"sentences"`
}

// Text reassembles the section from its sentences, refilling offset
// gaps with spaces.
func (s *Section) Text() string {
	var b strings.Builder
	b.Grow(s.End - s.Start)
	offset := s.Start
	for _, sent := range s.Sentences {
		if offset < sent.Start {
			b.WriteString(strings.Repeat(" ", sent.Start-offset))
		}
		b.WriteString(sent.Text)
		offset = sent.End
	}
	if offset < s.End {
		b.WriteString(strings.Repeat(" ", s.End-offset))
	}
	return b.String()
}

// Article is one document with text, metadata and annotations.
type Article struct {
	ID       string            `json:"id"`
	Type     string            `json:"type,omitempty"`
	Year     string            `json:"year,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Sections []*Section        `json:"sections"`

	cursor int
}

func NewArticle(id string) *Article {
	return &Article{ID: id}
}

// AddSection splits text into sentences and appends the section at the
// article's character cursor, directly after the previous section.
// Section texts carry their own separators; nothing is inserted
// between them.
func (a *Article) AddSection(sectionType, text string) {
	a.AddSectionAt(sectionType, text, a.cursor)
}

// AddSectionAt places a section at an explicit offset. Input formats
// with their own position accounting use this to keep source offsets
// intact; Text reconstructs any gap as newlines.
func (a *Article) AddSectionAt(sectionType, text string, offset int) {
	sec := &Section{
		ID:    len(a.Sections),
		Type:  sectionType,
		Start: offset,
		End:   offset + len(text),
	}
	for _, sp := range SplitSentences(text) {
		sec.Sentences = append(sec.Sentences, &Sentence{
			ID:    len(sec.Sentences),
			Text:  sp.Text,
			Start: offset + sp.Start,
			End:   offset + sp.End,
		})
	}
	a.Sections = append(a.Sections, sec)
	a.cursor = sec.End
}

// AddSentences appends a section whose sentence segmentation is
// already known, anchoring the sentences back to back at the cursor.
func (a *Article) AddSentences(sectionType string, sentences []string) {
	offset := a.cursor
	sec := &Section{ID: len(a.Sections), Type: sectionType, Start: offset}
	for _, text := range sentences {
		sec.Sentences = append(sec.Sentences, &Sentence{
			ID:    len(sec.Sentences),
			Text:  text,
			Start: offset,
			End:   offset + len(text),
		})
		offset += len(text)
	}
	sec.End = offset
	a.Sections = append(a.Sections, sec)
	a.cursor = sec.End
}

// Text reassembles the article, refilling gaps between sections with
// newlines.
func (a *Article) Text() string {
	var b strings.Builder
	offset := 0
	for _, sec := range a.Sections {
		if offset < sec.Start {
			b.WriteString(strings.Repeat("\n", sec.Start-offset))
		}
		b.WriteString(sec.Text())
		offset = sec.End
	}
	return b.String()
}

// Entities returns the article's entities flattened in sentence order.
func (a *Article) Entities() []Entity {
	var out []Entity
	for _, sec := range a.Sections {
		for _, sent := range sec.Sentences {
			out = append(out, sent.Entities...)
		}
	}
	return out
}

// Collection groups articles processed together.
type Collection struct {
	ID       string     `json:"id"`
	Articles []*Article `json:"articles"`
}

func NewCollection(id string) *Collection {
	return &Collection{ID: id}
}

func (c *Collection) AddArticle(a *Article) {
	c.Articles = append(c.Articles, a)
}

// Recognizer is the engine surface the document model drives. A
// matcher session satisfies it; Reset is called at every article
// boundary so learned abbreviations never leak across documents.
type Recognizer interface {
	Recognize(sentence string) []matcher.Match
	Reset()
}

// Annotate runs recognition over every sentence of every article.
// Entity IDs continue after the highest ID already present and stay
// continuous across the whole collection.
func (c *Collection) Annotate(r Recognizer) {
	next := c.nextEntityID()
	for _, a := range c.Articles {
		next = a.annotate(r, next)
	}
}

// Annotate runs recognition over every sentence of the article.
func (a *Article) Annotate(r Recognizer) {
	a.annotate(r, a.NextEntityID())
}

func (a *Article) annotate(r Recognizer, next int) int {
	r.Reset()
	for _, sec := range a.Sections {
		for _, sent := range sec.Sentences {
			next = sent.annotate(r, next)
		}
	}
	return next
}

func (s *Sentence) annotate(r Recognizer, next int) int {
	matches := r.Recognize(s.Text)
	prev := len(s.Entities)
	for _, m := range matches {
		entry := m.Entry
		s.Entities = append(s.Entities, Entity{
			ID:    next,
			Text:  s.Text[m.Start:m.End],
			Start: s.Start + m.Start,
			End:   s.Start + m.End,
			Entry: &entry,
		})
		next++
	}
	if prev > 0 && len(s.Entities) > prev {
		// New annotations on top of existing ones need sorting in.
		SortEntities(s.Entities)
	}
	return next
}

func (c *Collection) nextEntityID() int {
	max := 0
	for _, a := range c.Articles {
		if m := a.maxEntityID(); m > max {
			max = m
		}
	}
	return max + 1
}

// NextEntityID returns the ID the next annotation should take: one past
// the highest ID already present, or 1 for a pristine article.
func (a *Article) NextEntityID() int {
	return a.maxEntityID() + 1
}

func (a *Article) maxEntityID() int {
	max := 0
	for _, sec := range a.Sections {
		for _, sent := range sec.Sentences {
			for i := range sent.Entities {
				if sent.Entities[i].ID > max {
					max = sent.Entities[i].ID
				}
			}
		}
	}
	return max
}
