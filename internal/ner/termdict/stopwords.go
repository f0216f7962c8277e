package termdict

import (
	"fmt"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/normalize"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/tokenizer"
)

// LoadStopwords resolves stopword configuration into a set of
// normalized tuple keys. Expressions come from an inline list, a file
// with one expression per line, or both. Each expression is tokenized
// and normalized with the dictionary's own cascade, so multi-token
// stopwords are supported. Expressions yielding no tokens are ignored.
func LoadStopwords(tok *tokenizer.Tokenizer, chain normalize.Chain, words []string, file string) (map[string]struct{}, error) {
	all := append([]string(nil), words...)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("stopword list: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				all = append(all, line)
			}
		}
	}

	set := make(map[string]struct{}, len(all))
	for _, expr := range all {
		toks := tokenizer.Texts(tok.Tokenize(expr))
		if len(toks) == 0 {
			continue
		}
		set[Key(chain.All(toks))] = struct{}{}
	}
	return set, nil
}
