package document

import (
	"reflect"
	"testing"
)

func sentenceTexts(spans []Span) []string {
	if len(spans) == 0 {
		return nil
	}
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = sp.Text
	}
	return out
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			"two sentences",
			"First point. Second point.",
			[]string{"First point. ", "Second point."},
		},
		{
			"question and exclamation",
			"Really? Yes! Done.",
			[]string{"Really? ", "Yes! ", "Done."},
		},
		{
			"abbreviation before capital",
			"See Smith et al. Nature 2018. Results follow.",
			[]string{"See Smith et al. Nature 2018. ", "Results follow."},
		},
		{
			"figure reference",
			"As shown in Fig. 2, levels rose. A second trial followed.",
			[]string{"As shown in Fig. 2, levels rose. ", "A second trial followed."},
		},
		{
			"single-letter initial",
			"Described by J. Smith. Replication failed.",
			[]string{"Described by J. Smith. ", "Replication failed."},
		},
		{
			"decimal number",
			"Dose was 3.5 mg daily. Tolerance was good.",
			[]string{"Dose was 3.5 mg daily. ", "Tolerance was good."},
		},
		{
			"closing quote",
			"He said \"Stop.\" Then he left.",
			[]string{"He said \"Stop.\" ", "Then he left."},
		},
		{
			"closing bracket",
			"Levels fell (p < .01). No harm was seen.",
			[]string{"Levels fell (p < .01). ", "No harm was seen."},
		},
		{
			"no split before lowercase",
			"Values peaked. then declined again.",
			[]string{"Values peaked. then declined again."},
		},
		{
			"digit start",
			"Groups were compared. 12 patients dropped out.",
			[]string{"Groups were compared. ", "12 patients dropped out."},
		},
		{
			"trailing newline",
			"Line one.\nLine two.\n",
			[]string{"Line one.\n", "Line two.\n"},
		},
		{
			"no terminal punctuation",
			"One sentence only",
			[]string{"One sentence only"},
		},
		{"empty", "", nil},
		{"whitespace only", "   \n", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitSentences(tc.text)
			if texts := sentenceTexts(got); !reflect.DeepEqual(texts, tc.want) {
				t.Errorf("SplitSentences(%q) = %q, want %q", tc.text, texts, tc.want)
			}
		})
	}
}

func TestSplitSentenceSpans(t *testing.T) {
	texts := []string{
		"Insulin lowers glucose. Resistance defines type 2 diabetes.  Both matter.",
		" Leading space. Trailing tabs.\t\t",
		"Single.",
		"α-Synuclein aggregates. Plaques form.",
	}
	for _, text := range texts {
		spans := SplitSentences(text)
		if len(spans) == 0 {
			t.Fatalf("no spans for %q", text)
		}
		if spans[0].Start != 0 {
			t.Errorf("%q: first span starts at %d", text, spans[0].Start)
		}
		if last := spans[len(spans)-1]; last.End != len(text) {
			t.Errorf("%q: last span ends at %d, want %d", text, last.End, len(text))
		}
		var rebuilt string
		for i, sp := range spans {
			if text[sp.Start:sp.End] != sp.Text {
				t.Errorf("%q: span %d text does not match offsets", text, i)
			}
			if i > 0 && sp.Start != spans[i-1].End {
				t.Errorf("%q: gap between span %d and %d", text, i-1, i)
			}
			rebuilt += sp.Text
		}
		if rebuilt != text {
			t.Errorf("concatenated spans = %q, want %q", rebuilt, text)
		}
	}
}
