package normalize

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// MaskPlaceholder is the fixed string substituted for any token fully
// matching a mask target.
const MaskPlaceholder = "MASK"

// maskStep builds a masking step for one of the named character classes
// or for a token list file.
func maskStep(target string) (Step, error) {
	switch target {
	case "digits":
		return maskClass(unicode.IsDigit), nil
	case "numeric":
		return maskNumeric, nil
	case "punct":
		return maskClass(isPunct), nil
	default:
		return maskList(target)
	}
}

func isPunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// maskClass masks tokens whose every rune belongs to the class.
func maskClass(class func(rune) bool) Step {
	return func(token string) string {
		if token == "" {
			return token
		}
		for _, r := range token {
			if !class(r) {
				return token
			}
		}
		return MaskPlaceholder
	}
}

// maskNumeric masks anything that parses as a decimal or scientific
// number, such as "3.5" or "1e-6".
func maskNumeric(token string) string {
	if _, err := strconv.ParseFloat(token, 64); err != nil {
		return token
	}
	return MaskPlaceholder
}

// maskList masks exact members of a token list file, one token per
// line. Blank lines are ignored.
func maskList(path string) (Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mask token list: %w", err)
	}
	set := make(map[string]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			set[line] = struct{}{}
		}
	}
	return func(token string) string {
		if _, ok := set[token]; ok {
			return MaskPlaceholder
		}
		return token
	}, nil
}
