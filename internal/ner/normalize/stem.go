package normalize

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kljensen/snowball"
	"github.com/surgebase/porter2"
)

// stemCacheSize bounds the per-step memo of stemmed tokens. Tokens in
// biomedical text repeat heavily, so the hit rate is high.
const stemCacheSize = 1 << 16

var snowballLanguages = map[string]struct{}{
	"english":   {},
	"spanish":   {},
	"french":    {},
	"russian":   {},
	"swedish":   {},
	"norwegian": {},
}

// stemStep returns a memoized stemmer. The algorithm is a snowball
// language name or "porter2"; it defaults to english.
func stemStep(alg string) (Step, error) {
	if alg == "" {
		alg = "english"
	}
	var stem func(string) string
	switch {
	case alg == "porter2":
		stem = porter2.Stem
	default:
		if _, ok := snowballLanguages[alg]; !ok {
			return nil, fmt.Errorf("unknown stemming algorithm %q", alg)
		}
		lang := alg
		stem = func(token string) string {
			stemmed, err := snowball.Stem(token, lang, false)
			if err != nil {
				return token
			}
			return stemmed
		}
	}

	cache, err := lru.New[string, string](stemCacheSize)
	if err != nil {
		return nil, err
	}
	return func(token string) string {
		if stemmed, ok := cache.Get(token); ok {
			return stemmed
		}
		stemmed := stem(token)
		cache.Add(token, stemmed)
		return stemmed
	}, nil
}
