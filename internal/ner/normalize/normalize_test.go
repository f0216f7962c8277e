package normalize

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseErrors(t *testing.T) {
	bad := []string{
		"frobnicate",
		"unicode-XYZ",
		"stem-klingon",
		"lowercase-extra",
		"greektranslit-x",
		"mask",
		"mask-/no/such/file",
	}
	for _, spec := range bad {
		if _, err := Parse(spec); err == nil {
			t.Errorf("Parse(%q): expected error", spec)
		}
	}

	if _, err := Parse(""); err != nil {
		t.Errorf("Parse(\"\"): %v", err)
	}
}

func TestSteps(t *testing.T) {
	tests := []struct {
		spec  string
		token string
		want  string
	}{
		{"lowercase", "SOD1", "sod1"},
		{"unicode", "Ⅳ", "IV"},        // Roman numeral four
		{"unicode", "ﬁbroblast", "fibroblast"}, // fi ligature
		{"unicode-NFC", "é", "é"},
		{"unicode-NFD", "é", "é"},
		{"stem-english", "running", "run"},
		{"stem-english", "cats", "cat"},
		{"stem-porter2", "running", "run"},
		{"greektranslit", "α", "alpha"},
		{"greektranslit", "κB", "kappaB"},
		{"greektranslit", "ς", "sigma"},
		{"greektranslit", "TNFα", "TNFalpha"},
		{"mask-digits", "123", MaskPlaceholder},
		{"mask-digits", "12a", "12a"},
		{"mask-digits", "", ""},
		{"mask-numeric", "3.5", MaskPlaceholder},
		{"mask-numeric", "1e-6", MaskPlaceholder},
		{"mask-numeric", "p53", "p53"},
		{"mask-punct", "+", MaskPlaceholder},
		{"mask-punct", "a+b", "a+b"},
	}
	for _, tt := range tests {
		chain, err := Parse(tt.spec)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.spec, err)
		}
		if got := chain.Apply(tt.token); got != tt.want {
			t.Errorf("%s: Apply(%q) = %q, want %q", tt.spec, tt.token, got, tt.want)
		}
	}
}

func TestChainOrder(t *testing.T) {
	chain, err := Parse("lowercase greektranslit")
	if err != nil {
		t.Fatal(err)
	}
	// Capital alpha only transliterates after lowercasing.
	if got := chain.Apply("Α"); got != "alpha" {
		t.Errorf("Apply(Α) = %q, want %q", got, "alpha")
	}
}

func TestChainAll(t *testing.T) {
	chain, err := Parse("lowercase")
	if err != nil {
		t.Fatal(err)
	}
	got := chain.All([]string{"Diabetes", "Mellitus", "DM"})
	want := []string{"diabetes", "mellitus", "dm"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("All = %v, want %v", got, want)
	}

	var empty Chain
	if got := empty.Apply("AS-IS"); got != "AS-IS" {
		t.Errorf("nil chain changed token: %q", got)
	}
}

func TestMaskList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "masked.txt")
	if err := os.WriteFile(path, []byte("chr\nvs\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	chain, err := Parse("mask-" + path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := chain.Apply("chr"); got != MaskPlaceholder {
		t.Errorf("Apply(chr) = %q, want placeholder", got)
	}
	if got := chain.Apply("chromosome"); got != "chromosome" {
		t.Errorf("Apply(chromosome) = %q, want unchanged", got)
	}
}

func TestIdempotence(t *testing.T) {
	chain, err := Parse("lowercase unicode-NFKC greektranslit mask-digits")
	if err != nil {
		t.Fatal(err)
	}
	tokens := []string{"SOD1", "α", "Α", "123", "Ⅳ", "Diabetes", "MASK", ""}
	for _, tok := range tokens {
		once := chain.Apply(tok)
		twice := chain.Apply(once)
		if once != twice {
			t.Errorf("not idempotent on %q: %q then %q", tok, once, twice)
		}
	}
}

func TestStemCache(t *testing.T) {
	chain, err := Parse("stem-english")
	if err != nil {
		t.Fatal(err)
	}
	first := chain.Apply("aggregating")
	second := chain.Apply("aggregating")
	if first != second {
		t.Errorf("cached stem differs: %q vs %q", first, second)
	}
}
