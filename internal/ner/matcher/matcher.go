// Package matcher implements the dictionary matching engine: a
// single-pass scan that finds every term-index hit in a sentence,
// including multi-token terms and, through sessions, abbreviations
// learned earlier in the same document.
package matcher

import (
	"fmt"
	"regexp"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/termdict"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/tokenizer"
)

// Match is one dictionary hit: half-open byte offsets into the
// sentence plus the concept record that matched. Homonymous surface
// forms produce one Match per concept record, all with the same span.
type Match struct {
	Start int
	End   int
	Entry termdict.TermEntry
}

// Engine matches sentences against one immutable dictionary. It is
// safe for concurrent use; all mutable state lives in sessions.
type Engine struct {
	dict      *termdict.Dictionary
	learn     bool
	lookahead *regexp.Regexp
}

// New creates an engine without abbreviation learning.
func New(dict *termdict.Dictionary) *Engine {
	return &Engine{dict: dict}
}

// NewLearning creates an engine whose sessions learn parenthesized
// short forms after each match. With an empty pattern the lookahead
// inspects the following three tokens for ( w ); otherwise pattern is
// compiled as a regular expression matched against the sentence text
// immediately after the match, its first capture group being the short
// form.
func NewLearning(dict *termdict.Dictionary, pattern string) (*Engine, error) {
	e := &Engine{dict: dict, learn: true}
	if pattern != "" {
		re, err := regexp.Compile(`\A(?:` + pattern + `)`)
		if err != nil {
			return nil, fmt.Errorf("compile abbreviation pattern %q: %w", pattern, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("abbreviation pattern %q needs a capture group for the short form", pattern)
		}
		e.lookahead = re
	}
	return e, nil
}

// Dictionary exposes the engine's dictionary.
func (e *Engine) Dictionary() *termdict.Dictionary {
	return e.dict
}

// Recognize scans one sentence and returns every dictionary hit, in
// scan order: ascending start position, then ascending span length.
// Overlapping hits are all reported; span resolution is a separate
// concern.
func (e *Engine) Recognize(sentence string) []Match {
	return e.scan(sentence, nil, nil)
}

// matchHook is invoked after each hit with the matched entries, the
// token context and the hit's token range. Sessions use it for
// abbreviation lookahead.
type matchHook func(entries []termdict.TermEntry, sentence string, toks []tokenizer.Token, texts, norm []string, i, j int)

func (e *Engine) scan(sentence string, ov *overlay, hook matchHook) []Match {
	toks := e.dict.Tokenizer.Tokenize(sentence)
	if len(toks) == 0 {
		return nil
	}
	texts := tokenizer.Texts(toks)
	norm := e.dict.Chain.All(texts)

	var matches []Match
	for i := range norm {
		for _, length := range ov.candidateLengths(e.dict.Index, norm[i]) {
			j := i + length
			if j > len(norm) {
				// Lengths are sorted ascending, so every later
				// candidate would also overrun the sentence.
				break
			}
			key := ov.matchKey(e.dict.Index, norm[i:j], texts[i:j])
			entries := ov.entries(e.dict.Index, key)
			if entries == nil {
				continue
			}
			for _, entry := range entries {
				matches = append(matches, Match{Start: toks[i].Start, End: toks[j-1].End, Entry: entry})
			}
			if hook != nil {
				hook(entries, sentence, toks, texts, norm, i, j)
			}
		}
	}
	return matches
}
