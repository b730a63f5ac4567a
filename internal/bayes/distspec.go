package bayes

import (
	"fmt"
	"strings"
)

// distSpec is a node's parsed distribution label:
// "bernoulli(0.5)" or "normal(sick ? 60.0 : 50.0, 3.16)".
// Graphviz only admits its own attribute names, so the distribution
// rides in the label and doubles as the rendered node text.
type distSpec struct {
	kind string
	args []string
}

func parseDistSpec(raw string) (*distSpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty distribution label")
	}

	open := strings.Index(raw, "(")
	if open <= 0 || !strings.HasSuffix(raw, ")") {
		return nil, fmt.Errorf("expected kind(args...), got %q", raw)
	}

	kind := strings.TrimSpace(raw[:open])
	inner := raw[open+1 : len(raw)-1]

	args, err := splitTopLevel(inner)
	if err != nil {
		return nil, fmt.Errorf("invalid arguments in %q: %w", raw, err)
	}

	return &distSpec{kind: kind, args: args}, nil
}

// splitTopLevel splits on commas outside parentheses, so argument
// expressions may themselves be parenthesized.
func splitTopLevel(s string) ([]string, error) {
	var out []string
	depth := 0
	start := 0

	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses")
			}
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses")
	}
	out = append(out, strings.TrimSpace(s[start:]))

	for _, a := range out {
		if a == "" {
			return nil, fmt.Errorf("empty argument")
		}
	}
	return out, nil
}
