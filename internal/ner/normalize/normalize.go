// Package normalize implements the token normalization cascade applied
// to dictionary terms and sentence tokens before index lookup.
//
// A cascade is configured as a space-separated list of step names, each
// optionally carrying dash-joined arguments, for example
// "lowercase unicode-NFKC stem-english". Steps are applied left to
// right to every token independently.
package normalize

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Step is a single pure token transformation.
type Step func(token string) string

// Chain is an ordered normalization cascade. A nil Chain is valid and
// leaves tokens unchanged.
type Chain []Step

// Apply runs the cascade over a single token.
func (c Chain) Apply(token string) string {
	for _, step := range c {
		token = step(token)
	}
	return token
}

// All normalizes a token slice, returning a new slice of equal length.
func (c Chain) All(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = c.Apply(tok)
	}
	return out
}

// Parse builds a Chain from a configuration string. Unknown step names
// and invalid arguments are configuration errors, never skipped.
func Parse(spec string) (Chain, error) {
	fields := strings.Fields(spec)
	chain := make(Chain, 0, len(fields))
	for _, expr := range fields {
		step, err := parseStep(expr)
		if err != nil {
			return nil, fmt.Errorf("normalization step %q: %w", expr, err)
		}
		chain = append(chain, step)
	}
	return chain, nil
}

func parseStep(expr string) (Step, error) {
	name, arg, hasArg := strings.Cut(expr, "-")
	switch name {
	case "lowercase":
		if hasArg {
			return nil, fmt.Errorf("unexpected argument %q", arg)
		}
		return strings.ToLower, nil
	case "unicode":
		return unicodeStep(arg)
	case "stem":
		return stemStep(arg)
	case "greektranslit":
		if hasArg {
			return nil, fmt.Errorf("unexpected argument %q", arg)
		}
		return greekReplacer.Replace, nil
	case "mask":
		if !hasArg {
			return nil, fmt.Errorf("missing mask target")
		}
		return maskStep(arg)
	default:
		return nil, fmt.Errorf("unknown step name")
	}
}

var unicodeForms = map[string]norm.Form{
	"NFC":  norm.NFC,
	"NFD":  norm.NFD,
	"NFKC": norm.NFKC,
	"NFKD": norm.NFKD,
}

// unicodeStep performs canonical Unicode normalization. The form
// defaults to NFKC, the variant that folds compatibility characters
// such as Roman-numeral and fullwidth forms.
func unicodeStep(form string) (Step, error) {
	if form == "" {
		form = "NFKC"
	}
	f, ok := unicodeForms[form]
	if !ok {
		return nil, fmt.Errorf("unknown normalization form %q", form)
	}
	return f.String, nil
}
