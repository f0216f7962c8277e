package matcher

import (
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/termdict"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/tokenizer"
)

// overlay holds everything a session has learned on top of the base
// index. Keys present here shadow the base; the base maps are never
// written. A nil overlay reads through to the base unchanged.
type overlay struct {
	stopwords map[string]struct{}
	// lengths holds the full effective candidate-length set for every
	// overlaid first token, kept sorted ascending.
	lengths map[string][]int
	// entrySets holds the full effective concept-record set for every
	// overlaid candidate key.
	entrySets map[string][]termdict.TermEntry
}

func newOverlay() *overlay {
	return &overlay{
		stopwords: make(map[string]struct{}),
		lengths:   make(map[string][]int),
		entrySets: make(map[string][]termdict.TermEntry),
	}
}

func (o *overlay) isStopword(x *termdict.Index, key string) bool {
	if o != nil {
		if _, ok := o.stopwords[key]; ok {
			return true
		}
	}
	return x.IsStopword(key)
}

func (o *overlay) candidateLengths(x *termdict.Index, first string) []int {
	if o != nil {
		if lengths, ok := o.lengths[first]; ok {
			return lengths
		}
	}
	return x.CandidateLengths(first)
}

func (o *overlay) entries(x *termdict.Index, key string) []termdict.TermEntry {
	if o != nil {
		if set, ok := o.entrySets[key]; ok {
			return set
		}
	}
	return x.Entries(key)
}

func (o *overlay) matchKey(x *termdict.Index, norm, exact []string) string {
	key := termdict.Key(norm)
	if o.isStopword(x, key) {
		return termdict.Key(exact)
	}
	return key
}

// mod describes how one index key was changed by a registration.
type mod int

const (
	modNone     mod = iota
	modAdded        // key was absent before; undo removes it
	modExtended     // key existed; undo restores the previous value
)

// undoRecord is the three-way signature of one learned short form: the
// pre-mutation state of the stopword set, the first-token lengths and
// the full-term entries. Repeated registrations of the same short form
// merge so that the earliest pre-mutation state is preserved.
type undoRecord struct {
	stopwordAdded bool
	first         mod
	firstPrev     []int
	full          mod
	fullPrev      []termdict.TermEntry
}

// Session is the per-document view of an engine: base index plus
// learned abbreviations. Sessions are not safe for concurrent use;
// give each worker its own. The base index is shared and stays
// read-only throughout.
type Session struct {
	engine   *Engine
	overlay  *overlay
	registry map[string]undoRecord
}

// NewSession starts an empty session. Learning only happens if the
// engine was built with NewLearning.
func (e *Engine) NewSession() *Session {
	return &Session{
		engine:   e,
		overlay:  newOverlay(),
		registry: make(map[string]undoRecord),
	}
}

// Recognize behaves like Engine.Recognize, additionally consulting the
// session's learned abbreviations and, after every hit, looking ahead
// for a new parenthesized short form.
func (s *Session) Recognize(sentence string) []Match {
	var hook matchHook
	if s.engine.learn {
		if s.engine.lookahead != nil {
			hook = s.regexHook
		} else {
			hook = s.tokenHook
		}
	}
	return s.engine.scan(sentence, s.overlay, hook)
}

// Reset discards everything learned in this session: the overlay and
// the registry are dropped wholesale. The base index was never
// mutated, so the effective state after Reset is exactly the
// pre-session state. Call it at document boundaries; short forms must
// never leak across documents.
func (s *Session) Reset() {
	s.overlay = newOverlay()
	s.registry = make(map[string]undoRecord)
}

// Learned is the number of distinct short forms registered since the
// last Reset.
func (s *Session) Learned() int {
	return len(s.registry)
}

// tokenHook registers w as a short form when a hit is directly
// followed by the tokens ( w ).
func (s *Session) tokenHook(entries []termdict.TermEntry, _ string, _ []tokenizer.Token, texts, norm []string, _, j int) {
	if j+2 < len(texts) && texts[j] == "(" && texts[j+2] == ")" {
		s.register([]string{texts[j+1]}, []string{norm[j+1]}, entries)
	}
}

// regexHook matches the engine's lookahead pattern against the
// sentence text after the hit. The captured short form is tokenized
// with the dictionary's own tokenizer, so it may span several tokens.
func (s *Session) regexHook(entries []termdict.TermEntry, sentence string, toks []tokenizer.Token, _, _ []string, _, j int) {
	rest := sentence[toks[j-1].End:]
	m := s.engine.lookahead.FindStringSubmatchIndex(rest)
	if m == nil || len(m) < 4 || m[2] < 0 {
		return
	}
	short := rest[m[2]:m[3]]
	exact := tokenizer.Texts(s.engine.dict.Tokenizer.Tokenize(short))
	if len(exact) == 0 {
		return
	}
	s.register(exact, s.engine.dict.Chain.All(exact), entries)
}

// register performs one atomic abbreviation registration: stopword,
// first-token and full-term updates in the overlay, and the merged
// undo signature in the registry.
func (s *Session) register(exact, norm []string, entries []termdict.TermEntry) {
	x := s.engine.dict.Index
	exactKey := termdict.Key(exact)
	normKey := termdict.Key(norm)
	var rec undoRecord

	// Short forms are matched literally from now on: their normalized
	// form becomes a stopword, which routes candidate lookups through
	// the exact surface tokens.
	if !s.overlay.isStopword(x, normKey) {
		s.overlay.stopwords[normKey] = struct{}{}
		rec.stopwordAdded = true
	}

	effective := s.overlay.candidateLengths(x, norm[0])
	switch {
	case effective == nil:
		s.overlay.lengths[norm[0]] = []int{len(exact)}
		rec.first = modAdded
	case !slices.Contains(effective, len(exact)):
		rec.first = modExtended
		rec.firstPrev = effective
		merged := make([]int, len(effective), len(effective)+1)
		copy(merged, effective)
		merged = append(merged, len(exact))
		slices.Sort(merged)
		s.overlay.lengths[norm[0]] = merged
	}

	existing := s.overlay.entries(x, exactKey)
	switch union := termdict.Union(existing, entries); {
	case existing == nil:
		s.overlay.entrySets[exactKey] = union
		rec.full = modAdded
	case len(union) > len(existing):
		rec.full = modExtended
		rec.fullPrev = existing
		s.overlay.entrySets[exactKey] = union
	}

	s.record(exactKey, rec)
}

// record merges a new signature into the registry, component-wise,
// first state wins.
func (s *Session) record(key string, next undoRecord) {
	rec, ok := s.registry[key]
	if !ok {
		s.registry[key] = next
		return
	}
	if !rec.stopwordAdded {
		rec.stopwordAdded = next.stopwordAdded
	}
	if rec.first == modNone {
		rec.first, rec.firstPrev = next.first, next.firstPrev
	}
	if rec.full == modNone {
		rec.full, rec.fullPrev = next.full, next.fullPrev
	}
	s.registry[key] = rec
}
