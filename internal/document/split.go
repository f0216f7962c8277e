package document

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span is one sentence with byte offsets into the source text.
type Span struct {
	Text  string
	Start int
	End   int
}

// Letter runs that end in a period without ending the sentence.
// Single-letter initials are handled separately.
var abbreviations = map[string]struct{}{
	"al":     {},
	"approx": {},
	"ca":     {},
	"cf":     {},
	"dept":   {},
	"dr":     {},
	"ed":     {},
	"eds":    {},
	"eq":     {},
	"eqs":    {},
	"etc":    {},
	"fig":    {},
	"figs":   {},
	"inc":    {},
	"ltd":    {},
	"mr":     {},
	"mrs":    {},
	"ms":     {},
	"no":     {},
	"nos":    {},
	"prof":   {},
	"ref":    {},
	"refs":   {},
	"resp":   {},
	"spp":    {},
	"st":     {},
	"subsp":  {},
	"suppl":  {},
	"univ":   {},
	"var":    {},
	"vol":    {},
	"vols":   {},
	"vs":     {},
}

const closers = `"')]}` + "”’»"

func isCloser(r rune) bool {
	return strings.ContainsRune(closers, r)
}

// SplitSentences segments text into sentence spans. A sentence ends at
// ".", "!" or "?", optionally followed by closing quotes or brackets,
// when whitespace and an upper-case letter or digit follow. Periods
// after known abbreviations and single-letter initials do not end a
// sentence, and a period inside a number never does.
//
// Each span includes its trailing whitespace (its end is the next
// sentence's start, the last one ends at len(text)), so concatenating
// the span texts reproduces text byte for byte. Whitespace-only input
// yields no spans.
func SplitSentences(text string) []Span {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var spans []Span
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		j := i + 1
		for j < len(text) {
			r, size := utf8.DecodeRuneInString(text[j:])
			if !isCloser(r) {
				break
			}
			j += size
		}
		k := j
		for k < len(text) {
			r, size := utf8.DecodeRuneInString(text[k:])
			if !unicode.IsSpace(r) {
				break
			}
			k += size
		}
		if k == j || k == len(text) {
			// No separating whitespace, or nothing follows.
			continue
		}
		if r, _ := utf8.DecodeRuneInString(text[k:]); !unicode.IsUpper(r) && !unicode.IsDigit(r) {
			continue
		}
		if c == '.' && abbreviated(text, i) {
			continue
		}
		spans = append(spans, Span{Text: text[start:k], Start: start, End: k})
		start = k
		i = k - 1
	}
	spans = append(spans, Span{Text: text[start:], Start: start, End: len(text)})
	return spans
}

// abbreviated reports whether the period at text[i] closes an
// abbreviation or an initial rather than a sentence.
func abbreviated(text string, i int) bool {
	end := i
	start := end
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !unicode.IsLetter(r) {
			break
		}
		start -= size
	}
	if start == end {
		return false
	}
	word := text[start:end]
	if utf8.RuneCountInString(word) == 1 {
		return true
	}
	_, ok := abbreviations[strings.ToLower(word)]
	return ok
}
