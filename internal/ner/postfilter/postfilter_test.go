package postfilter

import (
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/termdict"
)

func ent(start, end int, typ string) document.Entity {
	return document.Entity{
		Start: start,
		End:   end,
		Entry: &termdict.TermEntry{Type: typ},
	}
}

func spans(entities []document.Entity) [][2]int {
	out := make([][2]int, len(entities))
	for i, e := range entities {
		out[i] = [2]int{e.Start, e.End}
	}
	return out
}

func TestRemoveSubmatches(t *testing.T) {
	tests := []struct {
		name string
		in   []document.Entity
		want [][2]int
	}{
		{
			"containing span wins",
			[]document.Entity{ent(0, 8, "B"), ent(0, 20, "A"), ent(12, 18, "C")},
			[][2]int{{0, 20}},
		},
		{
			"tied group dropped together",
			[]document.Entity{ent(0, 5, "A"), ent(0, 5, "B"), ent(0, 9, "C")},
			[][2]int{{0, 9}},
		},
		{
			"exact ties survive",
			[]document.Entity{ent(0, 5, "A"), ent(0, 5, "B")},
			[][2]int{{0, 5}, {0, 5}},
		},
		{
			"partial overlap is not containment",
			[]document.Entity{ent(0, 5, "A"), ent(3, 8, "B")},
			[][2]int{{0, 5}, {3, 8}},
		},
		{
			"multiple contained spans",
			[]document.Entity{ent(0, 10, "A"), ent(2, 4, "B"), ent(5, 7, "C")},
			[][2]int{{0, 10}},
		},
		{
			"shared start",
			[]document.Entity{ent(0, 7, "A"), ent(0, 16, "B")},
			[][2]int{{0, 16}},
		},
		{
			"shared end",
			[]document.Entity{ent(0, 16, "A"), ent(9, 16, "B")},
			[][2]int{{0, 16}},
		},
		{"single", []document.Entity{ent(1, 2, "A")}, [][2]int{{1, 2}}},
		{"empty", nil, [][2]int{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := spans(RemoveSubmatches(tc.in)); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("survivors = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRemoveSametypeSubmatches(t *testing.T) {
	tests := []struct {
		name string
		in   []document.Entity
		want [][2]int
	}{
		{
			"different types exempt",
			[]document.Entity{ent(0, 20, "gene"), ent(5, 9, "disease")},
			[][2]int{{0, 20}, {5, 9}},
		},
		{
			"same type removed",
			[]document.Entity{ent(0, 20, "gene"), ent(5, 9, "gene")},
			[][2]int{{0, 20}},
		},
		{
			"mixed partitions re-sorted",
			[]document.Entity{ent(0, 10, "A"), ent(2, 8, "B"), ent(3, 6, "A")},
			[][2]int{{0, 10}, {2, 8}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := spans(RemoveSametypeSubmatches(tc.in)); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("survivors = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRemoveOverlaps(t *testing.T) {
	tests := []struct {
		name string
		in   []document.Entity
		want [][2]int
	}{
		{
			"chained cluster keeps longest",
			[]document.Entity{ent(0, 10, "A"), ent(5, 9, "B"), ent(9, 14, "C")},
			[][2]int{{0, 10}},
		},
		{
			"length ties survive",
			[]document.Entity{ent(0, 5, "A"), ent(3, 8, "B")},
			[][2]int{{0, 5}, {3, 8}},
		},
		{
			"adjacent spans do not overlap",
			[]document.Entity{ent(0, 5, "A"), ent(5, 9, "B")},
			[][2]int{{0, 5}, {5, 9}},
		},
		{
			"independent clusters",
			[]document.Entity{ent(0, 4, "A"), ent(2, 6, "B"), ent(10, 12, "C")},
			[][2]int{{0, 4}, {2, 6}, {10, 12}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := spans(RemoveOverlaps(tc.in)); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("survivors = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRemoveSametypeOverlaps(t *testing.T) {
	in := []document.Entity{ent(0, 10, "gene"), ent(5, 9, "gene"), ent(6, 14, "disease")}
	want := [][2]int{{0, 10}, {6, 14}}
	if got := spans(RemoveSametypeOverlaps(in)); !reflect.DeepEqual(got, want) {
		t.Errorf("survivors = %v, want %v", got, want)
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{
		"submatches", "sametype-submatches", "overlaps", "sametype-overlaps", "frequent-fp",
	} {
		if _, err := ByName(name); err != nil {
			t.Errorf("ByName(%q): %v", name, err)
		}
	}
	if _, err := ByName("dedupe"); err == nil {
		t.Error("unknown name accepted")
	}
}

func TestResolveUnknownName(t *testing.T) {
	if _, err := Resolve([]string{"submatches", "bogus"}); err == nil {
		t.Error("unknown name accepted")
	}
	filters, err := Resolve([]string{"submatches", "frequent-fp"})
	if err != nil || len(filters) != 2 {
		t.Errorf("Resolve = %d filters, err %v", len(filters), err)
	}
}

func TestApply(t *testing.T) {
	sent := &document.Sentence{
		Text: "irrelevant",
		Entities: []document.Entity{
			ent(0, 8, "gene"), ent(0, 20, "gene"), ent(30, 34, "disease"),
		},
	}
	a := &document.Article{
		Sections: []*document.Section{{Sentences: []*document.Sentence{sent}}},
	}
	filters, err := Resolve([]string{"submatches"})
	if err != nil {
		t.Fatal(err)
	}
	Apply(a, filters)
	want := [][2]int{{0, 20}, {30, 34}}
	if got := spans(sent.Entities); !reflect.DeepEqual(got, want) {
		t.Errorf("entities = %v, want %v", got, want)
	}
}

func TestRemoveFrequentFP(t *testing.T) {
	tests := []struct {
		span string
		bad  bool
	}{
		{"p < .001", true},
		{"P < .001", true},
		{"Ph 7", true},
		{"min 30", true},
		{"d 4", true},
		{"μg", true},
		{"μl 5", true},
		{"to a", true},
		{"A 3D", true},
		{"x = 5", true},
		{"n > 100", true},
		{"insulin", false},
		{"diabetes mellitus", false},
		{"vitamin D", false},
		{"P 5", false},
		{"alpha 1", false},
	}
	var in []document.Entity
	for _, tc := range tests {
		in = append(in, document.Entity{Text: tc.span, Entry: &termdict.TermEntry{Type: "x"}})
	}
	kept := make(map[string]bool)
	for _, e := range RemoveFrequentFP(in) {
		kept[e.Text] = true
	}
	for _, tc := range tests {
		if tc.bad && kept[tc.span] {
			t.Errorf("%q survived", tc.span)
		}
		if !tc.bad && !kept[tc.span] {
			t.Errorf("%q was removed", tc.span)
		}
	}
}
