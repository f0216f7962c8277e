package termdict

import (
	"reflect"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/normalize"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/tokenizer"
)

func buildIndex(t *testing.T, rows [][]string, stop []string) *Index {
	t.Helper()
	tok := tokenizer.New()
	chain, err := normalize.Parse("lowercase")
	if err != nil {
		t.Fatal(err)
	}
	stopwords, err := LoadStopwords(tok, chain, stop, "")
	if err != nil {
		t.Fatal(err)
	}
	layout, err := Layout("bth")
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(tok, chain, layout, 0, stopwords)
	for i, row := range rows {
		if err := b.Add(row, i+1); err != nil {
			t.Fatalf("Add(%v): %v", row, err)
		}
	}
	return b.Build()
}

func bthRow(cui, resource, id, term, pref, typ string) []string {
	return []string{cui, resource, id, term, pref, typ}
}

func TestLayouts(t *testing.T) {
	fields := []string{"NCBI:7124", "TNF", "gene", "tumor necrosis factor"}
	layout, err := Layout("4")
	if err != nil {
		t.Fatal(err)
	}
	term, entry, err := layout(fields)
	if err != nil {
		t.Fatal(err)
	}
	if term != "TNF" {
		t.Errorf("term = %q", term)
	}
	want := TermEntry{
		Type:             "gene",
		PreferredForm:    "tumor necrosis factor",
		OriginalResource: "unknown",
		NativeID:         "NCBI:7124",
		CUI:              "none",
	}
	if !reflect.DeepEqual(entry, want) {
		t.Errorf("entry = %+v, want %+v", entry, want)
	}

	layout, err = Layout("6")
	if err != nil {
		t.Fatal(err)
	}
	term, entry, err = layout([]string{"NCBI:7124", "TNF", "gene", "tumor necrosis factor", "entrez", "OG77", "x1"})
	if err != nil {
		t.Fatal(err)
	}
	if term != "TNF" || entry.OriginalResource != "entrez" || entry.CUI != "OG77" {
		t.Errorf("unexpected layout-6 parse: %q %+v", term, entry)
	}
	if !reflect.DeepEqual(entry.Extra, []string{"x1"}) {
		t.Errorf("extra = %v", entry.Extra)
	}

	layout, err = Layout("bth")
	if err != nil {
		t.Fatal(err)
	}
	term, entry, err = layout(bthRow("OG77", "entrez", "NCBI:7124", "TNF", "tumor necrosis factor", "gene"))
	if err != nil {
		t.Fatal(err)
	}
	if term != "TNF" || entry.Type != "gene" || entry.NativeID != "NCBI:7124" || entry.CUI != "OG77" {
		t.Errorf("unexpected bth parse: %q %+v", term, entry)
	}

	if _, err := Layout("hub"); err != nil {
		t.Errorf("hub alias rejected: %v", err)
	}
	if _, err := Layout("7"); err == nil {
		t.Error("unknown layout accepted")
	}
}

func TestLayoutShortRow(t *testing.T) {
	layout, _ := Layout("bth")
	if _, _, err := layout([]string{"OG1", "res", "id"}); err == nil {
		t.Error("short row accepted")
	}
}

func TestBuildLookup(t *testing.T) {
	x := buildIndex(t, [][]string{
		bthRow("OG1", "ctd", "D003920", "diabetes mellitus", "Diabetes Mellitus", "disease"),
		bthRow("OG2", "uniprot", "P01308", "insulin", "Insulin", "protein"),
		bthRow("OG3", "ctd", "D007328", "insulin", "Insulin", "chemical"),
	}, nil)

	if got := x.CandidateLengths("diabetes"); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("CandidateLengths(diabetes) = %v", got)
	}
	if got := x.CandidateLengths("insulin"); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("CandidateLengths(insulin) = %v", got)
	}
	if got := x.CandidateLengths("missing"); got != nil {
		t.Errorf("CandidateLengths(missing) = %v", got)
	}

	entries := x.Entries(Key([]string{"diabetes", "mellitus"}))
	if len(entries) != 1 || entries[0].Type != "disease" {
		t.Errorf("diabetes mellitus entries = %+v", entries)
	}

	// Homonyms keep both concept records.
	entries = x.Entries(Key([]string{"insulin"}))
	if len(entries) != 2 {
		t.Fatalf("insulin entries = %+v", entries)
	}
	types := []string{entries[0].Type, entries[1].Type}
	if !strings.Contains(strings.Join(types, " "), "protein") || !strings.Contains(strings.Join(types, " "), "chemical") {
		t.Errorf("insulin types = %v", types)
	}
}

func TestBuildDeduplicates(t *testing.T) {
	row := bthRow("OG1", "ctd", "D003920", "diabetes", "Diabetes", "disease")
	x := buildIndex(t, [][]string{row, row, row}, nil)
	if entries := x.Entries(Key([]string{"diabetes"})); len(entries) != 1 {
		t.Errorf("duplicate rows kept: %+v", entries)
	}
}

func TestBuildStopwordExactKey(t *testing.T) {
	// "IS" normalizes to the stopword "is", so it is indexed under its
	// exact surface tokens.
	x := buildIndex(t, [][]string{
		bthRow("OG9", "hgnc", "HGNC:1", "IS", "insertion sequence", "gene"),
	}, []string{"is"})

	if got := x.Entries(Key([]string{"IS"})); len(got) != 1 {
		t.Errorf("exact key missing: %+v", got)
	}
	if got := x.Entries(Key([]string{"is"})); got != nil {
		t.Errorf("normalized key present: %+v", got)
	}
	// The first-token map is keyed by the normalized token regardless.
	if got := x.CandidateLengths("is"); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("CandidateLengths(is) = %v", got)
	}
	if !x.IsStopword(Key([]string{"is"})) {
		t.Error("IsStopword(is) = false")
	}

	// MatchKey routes stopword candidates to their exact tokens.
	if got := x.MatchKey([]string{"is"}, []string{"IS"}); got != Key([]string{"IS"}) {
		t.Errorf("MatchKey = %q", got)
	}
	if got := x.MatchKey([]string{"insulin"}, []string{"Insulin"}); got != Key([]string{"insulin"}) {
		t.Errorf("MatchKey = %q", got)
	}
}

func TestBuildEmptyTermSkipped(t *testing.T) {
	x := buildIndex(t, [][]string{
		bthRow("OG1", "ctd", "D1", "...", "Dots", "junk"),
		bthRow("OG2", "ctd", "D2", "real", "Real", "disease"),
	}, nil)
	if x.Terms() != 1 {
		t.Errorf("Terms = %d, want 1", x.Terms())
	}
}

func TestBuildFieldCountMismatch(t *testing.T) {
	tok := tokenizer.New()
	chain, _ := normalize.Parse("lowercase")
	layout, _ := Layout("bth")

	// Expecting one extra column.
	b := NewBuilder(tok, chain, layout, 1, nil)
	if err := b.Add(bthRow("OG1", "r", "i", "term", "p", "t"), 1); err == nil {
		t.Error("row with missing extra column accepted")
	}

	// Expecting none.
	b = NewBuilder(tok, chain, layout, 0, nil)
	long := append(bthRow("OG1", "r", "i", "term", "p", "t"), "surplus")
	if err := b.Add(long, 1); err == nil {
		t.Error("row with surplus column accepted")
	}
}

func TestIndexInvariant(t *testing.T) {
	x := buildIndex(t, [][]string{
		bthRow("OG1", "ctd", "D1", "diabetes mellitus type 2", "DM2", "disease"),
		bthRow("OG2", "ctd", "D2", "diabetes", "Diabetes", "disease"),
		bthRow("OG3", "ctd", "D3", "diabetes mellitus", "DM", "disease"),
	}, nil)

	for key := range x.fullTerms {
		toks := strings.Split(key, keySep)
		lengths := x.CandidateLengths(toks[0])
		found := false
		for _, l := range lengths {
			if l == len(toks) {
				found = true
			}
		}
		if !found {
			t.Errorf("key %q with %d tokens not reachable via %v", key, len(toks), lengths)
		}
	}
	if got := x.CandidateLengths("diabetes"); !reflect.DeepEqual(got, []int{1, 2, 4}) {
		t.Errorf("lengths not sorted ascending: %v", got)
	}
}
