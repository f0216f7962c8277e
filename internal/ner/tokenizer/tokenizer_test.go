package tokenizer

import (
	"reflect"
	"testing"
)

func TestTokenizeWords(t *testing.T) {
	tok := New()
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"simple", "adult T-cell leukemia", []string{"adult", "T", "cell", "leukemia"}},
		{"letters and digits split", "SOD1 and IL2", []string{"SOD", "1", "and", "IL", "2"}},
		{"digits first", "17beta-estradiol", []string{"17", "beta", "estradiol"}},
		{"underscore is a boundary", "foo_bar", []string{"foo", "bar"}},
		{"greek letters", "α-synuclein", []string{"α", "synuclein"}},
		{"parens dropped by default", "dystrophin (DMD)", []string{"dystrophin", "DMD"}},
		{"punctuation only", "... --- !!!", nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Texts(tok.Tokenize(tt.text))
			if len(got) == 0 {
				got = nil
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTokenizeOffsets(t *testing.T) {
	tok := New()
	texts := []string{
		"Diabetes mellitus (DM) is common.",
		"α-synuclein aggregates in PD",
		"IL-2 17beta-estradiol  \t x",
		"",
	}
	for _, text := range texts {
		prev := 0
		for _, token := range tok.Tokenize(text) {
			if token.Start < prev {
				t.Errorf("token %q at %d starts before previous end %d", token.Text, token.Start, prev)
			}
			if token.Start >= token.End {
				t.Errorf("token %q has empty span [%d,%d)", token.Text, token.Start, token.End)
			}
			if got := text[token.Start:token.End]; got != token.Text {
				t.Errorf("text[%d:%d] = %q, want %q", token.Start, token.End, got, token.Text)
			}
			prev = token.End
		}
	}
}

func TestTokenizeParens(t *testing.T) {
	tok := NewWithParens()
	got := Texts(tok.Tokenize("Diabetes mellitus (DM) rates"))
	want := []string{"Diabetes", "mellitus", "(", "DM", ")", "rates"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}

	// Other punctuation still yields nothing.
	got = Texts(tok.Tokenize("a, (b)"))
	want = []string{"a", "(", "b", ")"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestNewPattern(t *testing.T) {
	tok, err := NewPattern(`[A-Za-z0-9-]+`)
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}
	got := Texts(tok.Tokenize("IL-2 receptor"))
	want := []string{"IL-2", "receptor"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}

	if _, err := NewPattern(`[unclosed`); err == nil {
		t.Error("NewPattern with invalid pattern: expected error")
	}
}
