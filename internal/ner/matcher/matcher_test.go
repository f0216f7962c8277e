package matcher

import (
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/normalize"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/termdict"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/tokenizer"
)

func bthRow(cui, resource, id, term, pref, typ string) []string {
	return []string{cui, resource, id, term, pref, typ}
}

func testDict(t *testing.T, rows [][]string, stop []string, parens bool) *termdict.Dictionary {
	t.Helper()
	tok := tokenizer.New()
	if parens {
		tok = tokenizer.NewWithParens()
	}
	chain, err := normalize.Parse("lowercase")
	if err != nil {
		t.Fatal(err)
	}
	stopwords, err := termdict.LoadStopwords(tok, chain, stop, "")
	if err != nil {
		t.Fatal(err)
	}
	layout, err := termdict.Layout("bth")
	if err != nil {
		t.Fatal(err)
	}
	b := termdict.NewBuilder(tok, chain, layout, 0, stopwords)
	for i, row := range rows {
		if err := b.Add(row, i+1); err != nil {
			t.Fatal(err)
		}
	}
	return &termdict.Dictionary{Index: b.Build(), Tokenizer: tok, Chain: chain}
}

func spans(matches []Match) [][2]int {
	out := make([][2]int, len(matches))
	for i, m := range matches {
		out[i] = [2]int{m.Start, m.End}
	}
	return out
}

func TestRecognize(t *testing.T) {
	eng := New(testDict(t, [][]string{
		bthRow("OG1", "ctd", "D1", "diabetes mellitus", "Diabetes Mellitus", "disease"),
		bthRow("OG2", "uniprot", "P1", "insulin", "Insulin", "protein"),
	}, nil, false))

	sentence := "Diabetes mellitus impairs insulin response."
	matches := eng.Recognize(sentence)
	if len(matches) != 2 {
		t.Fatalf("matches = %+v", matches)
	}
	if got := sentence[matches[0].Start:matches[0].End]; got != "Diabetes mellitus" {
		t.Errorf("first span = %q", got)
	}
	if matches[0].Entry.CUI != "OG1" {
		t.Errorf("first entry = %+v", matches[0].Entry)
	}
	if got := sentence[matches[1].Start:matches[1].End]; got != "insulin" {
		t.Errorf("second span = %q", got)
	}
}

func TestRecognizeEmitsOverlaps(t *testing.T) {
	eng := New(testDict(t, [][]string{
		bthRow("OG1", "uniprot", "P1", "insulin", "Insulin", "protein"),
		bthRow("OG2", "uniprot", "P2", "insulin receptor", "Insulin receptor", "protein"),
	}, nil, false))

	got := spans(eng.Recognize("insulin receptor binding"))
	want := [][2]int{{0, 7}, {0, 16}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("spans = %v, want %v", got, want)
	}
}

func TestRecognizeHomonyms(t *testing.T) {
	eng := New(testDict(t, [][]string{
		bthRow("OG1", "uniprot", "P1", "insulin", "Insulin", "protein"),
		bthRow("OG2", "ctd", "C1", "insulin", "Insulin", "chemical"),
	}, nil, false))

	matches := eng.Recognize("insulin")
	if len(matches) != 2 {
		t.Fatalf("matches = %+v", matches)
	}
	if matches[0].Start != matches[1].Start || matches[0].End != matches[1].End {
		t.Error("homonym spans differ")
	}
	if matches[0].Entry.Type == matches[1].Entry.Type {
		t.Error("expected two distinct concept records")
	}
}

func TestRecognizeTruncatedSentence(t *testing.T) {
	// The two-token term must not be attempted when only one token
	// remains, and must not suppress the one-token term.
	eng := New(testDict(t, [][]string{
		bthRow("OG1", "ctd", "D1", "diabetes", "Diabetes", "disease"),
		bthRow("OG2", "ctd", "D2", "diabetes mellitus", "Diabetes Mellitus", "disease"),
	}, nil, false))

	matches := eng.Recognize("type 2 diabetes")
	if len(matches) != 1 || matches[0].Entry.CUI != "OG1" {
		t.Fatalf("matches = %+v", matches)
	}
}

func TestRecognizeStopwordExactMatch(t *testing.T) {
	dict := testDict(t, [][]string{
		bthRow("OG9", "hgnc", "H1", "is", "insertion sequence", "gene"),
	}, []string{"is"}, false)
	eng := New(dict)

	if matches := eng.Recognize("the is element"); len(matches) != 1 {
		t.Errorf("literal occurrence: matches = %+v", matches)
	}
	if matches := eng.Recognize("the IS element"); len(matches) != 0 {
		t.Errorf("case-differing occurrence matched: %+v", matches)
	}
}

func TestRecognizeEmptySentence(t *testing.T) {
	eng := New(testDict(t, [][]string{
		bthRow("OG1", "ctd", "D1", "asthma", "Asthma", "disease"),
	}, nil, false))
	for _, sentence := range []string{"", "   ", "--- !!!"} {
		if matches := eng.Recognize(sentence); matches != nil {
			t.Errorf("Recognize(%q) = %+v", sentence, matches)
		}
	}
}

func TestRecognizeByteOffsets(t *testing.T) {
	eng := New(testDict(t, [][]string{
		bthRow("OG1", "ctd", "D1", "synuclein", "Synuclein", "protein"),
	}, nil, false))

	sentence := "α-synuclein aggregates"
	matches := eng.Recognize(sentence)
	if len(matches) != 1 {
		t.Fatalf("matches = %+v", matches)
	}
	if got := sentence[matches[0].Start:matches[0].End]; got != "synuclein" {
		t.Errorf("span text = %q", got)
	}
}

func TestNewLearningPatternValidation(t *testing.T) {
	dict := testDict(t, nil, nil, true)
	if _, err := NewLearning(dict, `[unclosed`); err == nil {
		t.Error("invalid pattern accepted")
	}
	if _, err := NewLearning(dict, `\s+\(\w+\)`); err == nil {
		t.Error("pattern without capture group accepted")
	}
	if _, err := NewLearning(dict, ""); err != nil {
		t.Errorf("token-based learning rejected: %v", err)
	}
}
