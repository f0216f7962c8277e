package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/tokenizer"
)

// Position tags, mapped onto the concrete tagset on output.
const (
	tagInside = iota
	tagOutside
	tagBegin
	tagEnd
	tagSingle
)

var tagsets = map[string][5]byte{
	"IOBES": {'I', 'O', 'B', 'E', 'S'},
	"IOB":   {'I', 'O', 'B', 'I', 'B'},
	"IO":    {'I', 'O', 'I', 'I', 'I'},
}

// CoNLLOptions controls the CoNLL rendering.
type CoNLLOptions struct {
	// Tagset is IOBES (default), IOB or IO.
	Tagset string
	// DocID prepends a "# doc_id = ..." comment per article.
	DocID bool
	// Offsets adds start/end columns between token and tag.
	Offsets bool
	// Tokenizer defaults to the standard word tokenizer.
	Tokenizer *tokenizer.Tokenizer
}

// CoNLLWriter writes one token per line with a position-prefixed
// concept label, sentences separated by blank lines.
type CoNLLWriter struct {
	w      *bufio.Writer
	tagset [5]byte
	opts   CoNLLOptions
}

func NewCoNLLWriter(w io.Writer, opts CoNLLOptions) (*CoNLLWriter, error) {
	if opts.Tagset == "" {
		opts.Tagset = "IOBES"
	}
	tagset, ok := tagsets[opts.Tagset]
	if !ok {
		return nil, fmt.Errorf("unknown CoNLL tagset %q", opts.Tagset)
	}
	if opts.Tokenizer == nil {
		opts.Tokenizer = tokenizer.New()
	}
	return &CoNLLWriter{w: bufio.NewWriter(w), tagset: tagset, opts: opts}, nil
}

func (c *CoNLLWriter) WriteCollection(coll *document.Collection) error {
	for _, a := range coll.Articles {
		if err := c.WriteArticle(a); err != nil {
			return err
		}
	}
	return nil
}

func (c *CoNLLWriter) WriteArticle(a *document.Article) error {
	if c.opts.DocID {
		fmt.Fprintf(c.w, "# doc_id = %s\n", a.ID)
	}
	for _, sec := range a.Sections {
		for _, sent := range sec.Sentences {
			c.sentence(sent)
			c.w.WriteByte('\n')
		}
	}
	return c.w.Flush()
}

func (c *CoNLLWriter) sentence(sent *document.Sentence) {
	toks := c.opts.Tokenizer.Tokenize(sent.Text)
	labels := tokenLabels(toks, sent)
	for i, tok := range toks {
		tag := c.positionTag(labels, i)
		if c.opts.Offsets {
			fmt.Fprintf(c.w, "%s\t%d\t%d\t%s\n",
				tok.Text, sent.Start+tok.Start, sent.Start+tok.End, tag)
		} else {
			fmt.Fprintf(c.w, "%s\t%s\n", tok.Text, tag)
		}
	}
}

// positionTag picks the tag for token i from its label and the labels
// of its neighbors. Adjacent tokens belong to the same mention only
// when their full label strings agree.
func (c *CoNLLWriter) positionTag(labels []string, i int) string {
	cur := labels[i]
	if cur == "" {
		return c.tag(tagOutside, "")
	}
	var prev, next string
	if i > 0 {
		prev = labels[i-1]
	}
	if i+1 < len(labels) {
		next = labels[i+1]
	}
	switch {
	case prev == cur && next == cur:
		return c.tag(tagInside, cur)
	case prev == cur:
		return c.tag(tagEnd, cur)
	case next == cur:
		return c.tag(tagBegin, cur)
	default:
		return c.tag(tagSingle, cur)
	}
}

func (c *CoNLLWriter) tag(id int, label string) string {
	tag := string(c.tagset[id])
	if label != "" {
		return tag + "-" + label
	}
	return tag
}

// tokenLabels assigns each token the ";"-joined concept IDs of the
// entities covering it. Tokens and entities are both sorted by
// position, so a single forward pass over the entity list suffices:
// entities enter the active window when they start before the token
// ends and leave it once they end at or before the token start.
func tokenLabels(toks []tokenizer.Token, sent *document.Sentence) []string {
	labels := make([]string, len(toks))
	var active []*document.Entity
	next := 0
	for i, tok := range toks {
		start := sent.Start + tok.Start
		end := sent.Start + tok.End
		kept := active[:0]
		for _, e := range active {
			if e.End > start {
				kept = append(kept, e)
			}
		}
		active = kept
		for next < len(sent.Entities) && sent.Entities[next].Start < end {
			if e := &sent.Entities[next]; e.End > start {
				active = append(active, e)
			}
			next++
		}
		if len(active) > 0 {
			ids := make([]string, len(active))
			for j, e := range active {
				ids[j] = e.NativeID()
			}
			labels[i] = strings.Join(ids, ";")
		}
	}
	return labels
}
