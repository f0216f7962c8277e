// Package tokenizer splits sentence text into word tokens with byte
// offsets. A token is a maximal run of Unicode letters or a maximal run
// of Unicode digits; punctuation and whitespace are boundaries and
// yield no tokens.
package tokenizer

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"
)

// Token is a single word or number with its half-open byte offsets into
// the source text. The invariant text[Start:End] == Text always holds.
type Token struct {
	Text  string
	Start int
	End   int
}

// Tokenizer produces offset-preserving tokens from sentence-sized text.
// The zero value is not usable; construct one with New, NewWithParens
// or NewPattern.
type Tokenizer struct {
	parens bool
	custom *regexp.Regexp
}

// New returns the default tokenizer.
func New() *Tokenizer {
	return &Tokenizer{}
}

// NewWithParens returns a tokenizer that additionally emits each single
// '(' or ')' character as its own one-byte token, so that parenthesized
// short forms are visible during abbreviation detection.
func NewWithParens() *Tokenizer {
	return &Tokenizer{parens: true}
}

// NewPattern returns a tokenizer that emits every non-overlapping match
// of a custom pattern, replacing the default letter-run/digit-run rule.
// An invalid pattern is a configuration error.
func NewPattern(expr string) (*Tokenizer, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile token pattern %q: %w", expr, err)
	}
	return &Tokenizer{custom: re}, nil
}

// Tokenize splits text into tokens. Tokens appear in text order and
// never overlap; empty tokens are never produced.
func (t *Tokenizer) Tokenize(text string) []Token {
	if t.custom != nil {
		return t.tokenizePattern(text)
	}
	var tokens []Token
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case unicode.IsDigit(r):
			j := scanRun(text, i+size, unicode.IsDigit)
			tokens = append(tokens, Token{Text: text[i:j], Start: i, End: j})
			i = j
		case unicode.IsLetter(r):
			j := scanRun(text, i+size, unicode.IsLetter)
			tokens = append(tokens, Token{Text: text[i:j], Start: i, End: j})
			i = j
		case t.parens && (r == '(' || r == ')'):
			tokens = append(tokens, Token{Text: text[i : i+size], Start: i, End: i + size})
			i += size
		default:
			i += size
		}
	}
	return tokens
}

// scanRun advances from position i while the current rune satisfies
// class, returning the end of the run.
func scanRun(text string, i int, class func(rune) bool) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !class(r) {
			break
		}
		i += size
	}
	return i
}

func (t *Tokenizer) tokenizePattern(text string) []Token {
	spans := t.custom.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return nil
	}
	tokens := make([]Token, 0, len(spans))
	for _, span := range spans {
		if span[0] == span[1] {
			continue
		}
		tokens = append(tokens, Token{Text: text[span[0]:span[1]], Start: span[0], End: span[1]})
	}
	return tokens
}

// Texts returns just the token strings, in order.
func Texts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Text
	}
	return out
}
