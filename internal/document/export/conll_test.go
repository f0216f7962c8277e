package export

import (
	"bytes"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/document"
)

func conllArticle() *document.Article {
	a := document.NewArticle("9")
	a.AddSection("abstract", "Insulin receptor binds insulin.")
	a.Sections[0].Sentences[0].Entities = []document.Entity{
		entity(1, "Insulin receptor", 0, 16, "protein", "Insulin receptor", "uniprot", "P06213"),
		entity(2, "insulin", 23, 30, "protein", "Insulin", "uniprot", "P01308"),
	}
	return a
}

func TestCoNLLTagsets(t *testing.T) {
	tests := []struct {
		tagset string
		want   string
	}{
		{
			"IOBES",
			"Insulin\tB-P06213\nreceptor\tE-P06213\nbinds\tO\ninsulin\tS-P01308\n\n",
		},
		{
			"IOB",
			"Insulin\tB-P06213\nreceptor\tI-P06213\nbinds\tO\ninsulin\tB-P01308\n\n",
		},
		{
			"IO",
			"Insulin\tI-P06213\nreceptor\tI-P06213\nbinds\tO\ninsulin\tI-P01308\n\n",
		},
	}
	for _, tc := range tests {
		t.Run(tc.tagset, func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewCoNLLWriter(&buf, CoNLLOptions{Tagset: tc.tagset})
			if err != nil {
				t.Fatal(err)
			}
			if err := w.WriteArticle(conllArticle()); err != nil {
				t.Fatal(err)
			}
			if got := buf.String(); got != tc.want {
				t.Errorf("output:\n%q\nwant:\n%q", got, tc.want)
			}
		})
	}
}

func TestCoNLLInsideTags(t *testing.T) {
	a := document.NewArticle("11")
	a.AddSection("title", "Adult T cell leukemia spreads.")
	a.Sections[0].Sentences[0].Entities = []document.Entity{
		entity(1, "Adult T cell leukemia", 0, 21, "disease", "ATL", "ctd", "D015459"),
	}
	var buf bytes.Buffer
	w, err := NewCoNLLWriter(&buf, CoNLLOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteArticle(a); err != nil {
		t.Fatal(err)
	}
	want := "Adult\tB-D015459\nT\tI-D015459\ncell\tI-D015459\n" +
		"leukemia\tE-D015459\nspreads\tO\n\n"
	if got := buf.String(); got != want {
		t.Errorf("output:\n%q\nwant:\n%q", got, want)
	}
}

func TestCoNLLOverlappingLabels(t *testing.T) {
	a := conllArticle()
	sent := a.Sections[0].Sentences[0]
	sent.Entities = append([]document.Entity{
		entity(3, "Insulin", 0, 7, "protein", "Insulin", "uniprot", "P01308"),
	}, sent.Entities...)

	var buf bytes.Buffer
	w, err := NewCoNLLWriter(&buf, CoNLLOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteArticle(a); err != nil {
		t.Fatal(err)
	}
	// Joined labels differ between neighbors, so both tokens of the
	// receptor mention come out as singletons.
	want := "Insulin\tS-P01308;P06213\nreceptor\tS-P06213\nbinds\tO\ninsulin\tS-P01308\n\n"
	if got := buf.String(); got != want {
		t.Errorf("output:\n%q\nwant:\n%q", got, want)
	}
}

func TestCoNLLDocIDAndOffsets(t *testing.T) {
	a := document.NewArticle("PMC42")
	a.AddSection("title", "Insulin acts. Fast acting.")
	a.Sections[0].Sentences[0].Entities = []document.Entity{
		entity(1, "Insulin", 0, 7, "protein", "Insulin", "uniprot", "P01308"),
	}
	var buf bytes.Buffer
	w, err := NewCoNLLWriter(&buf, CoNLLOptions{DocID: true, Offsets: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteArticle(a); err != nil {
		t.Fatal(err)
	}
	want := "# doc_id = PMC42\n" +
		"Insulin\t0\t7\tS-P01308\nacts\t8\t12\tO\n\n" +
		"Fast\t14\t18\tO\nacting\t19\t25\tO\n\n"
	if got := buf.String(); got != want {
		t.Errorf("output:\n%q\nwant:\n%q", got, want)
	}
}

func TestCoNLLUnknownTagset(t *testing.T) {
	if _, err := NewCoNLLWriter(&bytes.Buffer{}, CoNLLOptions{Tagset: "BILOU"}); err == nil {
		t.Error("unknown tagset accepted")
	}
}
