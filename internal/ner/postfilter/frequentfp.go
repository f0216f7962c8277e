package postfilter

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/document"
)

// Surface forms that slip through every other rule.
var badLiteral = map[string]struct{}{
	"to a": {},
	"a 3d": {},
}

var badTerm = compileBadTerms()

func compileBadTerms() *regexp.Regexp {
	words := strings.Fields(
		// General language.
		"a all and as at be for in is of on or per the to was " +
			// Units.
			"cm kg ml mm mol μg μl μm μs " +
			// Statistics debris, as in "p < .001".
			"ci d n hr max min p ph pi sp")
	variants := make([]string, 0, 2*len(words))
	for _, w := range words {
		variants = append(variants, regexp.QuoteMeta(w))
		if utf8.RuneCountInString(w) > 1 {
			r, size := utf8.DecodeRuneInString(w)
			variants = append(variants, regexp.QuoteMeta(string(unicode.ToTitle(r))+w[size:]))
		}
	}
	stopwordNumber := `(?:` + strings.Join(variants, `|`) + `)[^\p{L}\p{N}_]+\d+`
	microUnit := `μ[A-Za-z](?:[^\p{L}\p{N}_]|\d)*`
	return regexp.MustCompile(`\A(?:` + stopwordNumber + `|` + microUnit + `)\z`)
}

// RemoveFrequentFP drops entities whose surface form matches a pattern
// of notoriously bad hits: a unit or function word followed by a
// number, a μ-prefixed unit, any span containing a comparison
// character, and a short literal blocklist.
func RemoveFrequentFP(entities []document.Entity) []document.Entity {
	kept := entities[:0]
	for i := range entities {
		if !badSurface(entities[i].Text) {
			kept = append(kept, entities[i])
		}
	}
	return kept
}

func badSurface(span string) bool {
	if badTerm.MatchString(span) {
		return true
	}
	if _, ok := badLiteral[strings.ToLower(span)]; ok {
		return true
	}
	return strings.ContainsAny(span, "<=>")
}
