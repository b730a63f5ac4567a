package param

import (
	"fmt"
	"strings"
	"unicode"
)

// Validate enforces the parameter expression policy: arithmetic,
// comparisons, boolean logic and the ternary operator over parent names
// and numeric literals. No function calls, no member access, nothing
// that could reach outside the declared parents.
func Validate(src string) error {
	src = strings.TrimSpace(src)
	if src == "" {
		return fmt.Errorf("empty expression")
	}

	illegalChars := []rune{'{', '}', '[', ']', ';', '@', '#', '$', '\\', '`'}
	for _, ch := range illegalChars {
		if strings.ContainsRune(src, ch) {
			return fmt.Errorf("illegal character %q", ch)
		}
	}

	if strings.Contains(src, ".") && !containsOnlyNumericDots(src) {
		return fmt.Errorf("member access is not allowed")
	}

	for i := 0; i < len(src)-1; i++ {
		if src[i] == '(' {
			j := i - 1
			for j >= 0 && unicode.IsSpace(rune(src[j])) {
				j--
			}
			if j >= 0 && (unicode.IsLetter(rune(src[j])) || src[j] == '_') {
				k := j
				for k >= 0 && (unicode.IsLetter(rune(src[k])) || unicode.IsDigit(rune(src[k])) || src[k] == '_') {
					k--
				}
				ident := strings.TrimSpace(src[k+1 : j+1])
				if ident != "" {
					return fmt.Errorf("function calls are not allowed (found %q(...))", ident)
				}
			}
		}
	}

	return nil
}

// containsOnlyNumericDots accepts dots that sit inside numeric literals
// (digit on at least one side) and rejects everything else.
func containsOnlyNumericDots(src string) bool {
	for i := 0; i < len(src); i++ {
		if src[i] != '.' {
			continue
		}
		prevDigit := i > 0 && unicode.IsDigit(rune(src[i-1]))
		nextDigit := i < len(src)-1 && unicode.IsDigit(rune(src[i+1]))
		if !prevDigit && !nextDigit {
			return false
		}
	}
	return true
}
