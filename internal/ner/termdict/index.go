package termdict

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/normalize"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/tokenizer"
)

// keySep joins token tuples into map keys. Default tokens are letter
// runs, digit runs or single parentheses, so the separator cannot
// occur inside a token.
const keySep = "\x1f"

// Key joins a token tuple into its index key.
func Key(tokens []string) string {
	return strings.Join(tokens, keySep)
}

// Index is the immutable lookup structure built from one termlist.
//
// firstToken maps the normalized first token of every term to the
// ascending-sorted set of term lengths (in tokens) starting with it.
// The sort order is load-bearing: the matching loop stops scanning
// lengths as soon as one exceeds the remaining sentence.
//
// fullTerms maps a complete candidate key to its concept records. For
// terms whose normalized form is a stopword, the key holds the exact
// surface tokens instead, which restricts such terms to literal
// matches.
type Index struct {
	firstToken map[string][]int
	fullTerms  map[string][]TermEntry
	stopwords  map[string]struct{}
	nFields    int
	rows       int
}

// CandidateLengths returns the sorted term lengths for a normalized
// first token, or nil.
func (x *Index) CandidateLengths(first string) []int {
	return x.firstToken[first]
}

// Entries returns the concept records stored under a candidate key, or
// nil.
func (x *Index) Entries(key string) []TermEntry {
	return x.fullTerms[key]
}

// IsStopword reports whether the normalized key is a stopword tuple.
func (x *Index) IsStopword(key string) bool {
	_, ok := x.stopwords[key]
	return ok
}

// NFields is the row arity of every entry in this index.
func (x *Index) NFields() int {
	return x.nFields
}

// Terms is the number of distinct surface keys.
func (x *Index) Terms() int {
	return len(x.fullTerms)
}

// Rows is the number of termlist rows indexed, duplicates included.
func (x *Index) Rows() int {
	return x.rows
}

// MatchKey applies the exact-match policy: if the normalized tuple is
// a stopword, the lookup key is built from the exact surface tokens,
// so that stopword terms only match literal occurrences.
func (x *Index) MatchKey(norm, exact []string) string {
	key := Key(norm)
	if x.IsStopword(key) {
		return Key(exact)
	}
	return key
}

// Builder accumulates termlist rows into an Index. It applies the
// dictionary's own tokenizer and normalization cascade to every
// surface term, and the same exact-match policy the matcher uses, so
// the built keys and the lookup keys agree.
type Builder struct {
	tok     *tokenizer.Tokenizer
	chain   normalize.Chain
	layout  RowLayout
	nFields int
	log     *slog.Logger

	stopwords  map[string]struct{}
	firstToken map[string]map[int]struct{}
	fullTerms  map[string][]TermEntry
	seen       map[string]struct{}
	rows       int
	skipped    int
}

// NewBuilder prepares an empty index. nExtra is the number of columns
// beyond the five standard fields; stopwords must already be
// normalized tuple keys (see LoadStopwords).
func NewBuilder(tok *tokenizer.Tokenizer, chain normalize.Chain, layout RowLayout, nExtra int, stopwords map[string]struct{}) *Builder {
	if stopwords == nil {
		stopwords = map[string]struct{}{}
	}
	return &Builder{
		tok:        tok,
		chain:      chain,
		layout:     layout,
		nFields:    5 + nExtra,
		log:        slog.Default().With("component", "termdict"),
		stopwords:  stopwords,
		firstToken: make(map[string]map[int]struct{}),
		fullTerms:  make(map[string][]TermEntry),
		seen:       make(map[string]struct{}),
	}
}

// Add indexes one termlist row. A row whose arity disagrees with the
// configured field count is a hard error; a row with an empty surface
// term is skipped with a warning.
func (b *Builder) Add(fields []string, line int) error {
	term, entry, err := b.layout(fields)
	if err != nil {
		return fmt.Errorf("line %d: %w", line, err)
	}
	if got := entry.NFields(); got != b.nFields {
		return fmt.Errorf("line %d: wrong field count: %d (expected %d)", line, got+1, b.nFields+1)
	}

	toks := tokenizer.Texts(b.tok.Tokenize(term))
	if len(toks) == 0 {
		b.log.Warn("skipping row: empty term field", "line", line)
		b.skipped++
		return nil
	}
	norm := b.chain.All(toks)

	key := Key(norm)
	if _, stop := b.stopwords[key]; stop {
		key = Key(toks)
	}

	lengths, ok := b.firstToken[norm[0]]
	if !ok {
		lengths = make(map[int]struct{})
		b.firstToken[norm[0]] = lengths
	}
	lengths[len(toks)] = struct{}{}

	entryID := key + keySep + keySep + entry.identity()
	if _, dup := b.seen[entryID]; !dup {
		b.seen[entryID] = struct{}{}
		b.fullTerms[key] = append(b.fullTerms[key], entry)
	}
	b.rows++
	return nil
}

// Build finalizes the accumulated rows into an immutable Index.
func (b *Builder) Build() *Index {
	firstToken := make(map[string][]int, len(b.firstToken))
	for tok, set := range b.firstToken {
		lengths := make([]int, 0, len(set))
		for l := range set {
			lengths = append(lengths, l)
		}
		slices.Sort(lengths)
		firstToken[tok] = lengths
	}
	b.log.Info("termlist indexed",
		"rows", b.rows, "skipped", b.skipped, "terms", len(b.fullTerms))
	return &Index{
		firstToken: firstToken,
		fullTerms:  b.fullTerms,
		stopwords:  b.stopwords,
		nFields:    b.nFields,
		rows:       b.rows,
	}
}
