package bayes

import "fmt"

// Evidence fixes variables to observed values before sampling. Bernoulli
// variables take a bool; normal variables take a numeric scalar, or a
// sequence of numerics when the node is a leaf (repeated independent
// observations of the same quantity).
type Evidence map[string]any

type InvalidEvidenceError struct {
	Var    string
	Reason string
}

func (e *InvalidEvidenceError) Error() string {
	return fmt.Sprintf("invalid evidence for %q: %s", e.Var, e.Reason)
}

// Observe returns a copy of the network with the evidence bound. The
// receiver is never mutated; observed variables are excluded from
// sampling and condition everything downstream.
func (n *Network) Observe(ev Evidence) (*Network, error) {
	bound := n.clone()

	for name, value := range ev {
		node, ok := bound.Nodes[name]
		if !ok {
			return nil, &InvalidEvidenceError{Var: name, Reason: "no such variable"}
		}

		switch node.Kind {
		case Bernoulli:
			b, err := coerceBool(value)
			if err != nil {
				return nil, &InvalidEvidenceError{Var: name, Reason: err.Error()}
			}
			node.Observed = true
			node.ObservedValue = b

		case Normal:
			if seq, ok := coerceFloatSlice(value); ok {
				if len(node.Children) > 0 {
					return nil, &InvalidEvidenceError{Var: name, Reason: "sequence evidence requires a leaf variable"}
				}
				if len(seq) == 0 {
					return nil, &InvalidEvidenceError{Var: name, Reason: "empty observation sequence"}
				}
				node.Observed = true
				node.ObservedValues = seq
				continue
			}
			f, err := coerceFloat(value)
			if err != nil {
				return nil, &InvalidEvidenceError{Var: name, Reason: err.Error()}
			}
			node.Observed = true
			node.ObservedValue = f
		}
	}

	return bound, nil
}

func coerceBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int:
		if x == 0 || x == 1 {
			return x == 1, nil
		}
	case float64:
		if x == 0 || x == 1 {
			return x == 1, nil
		}
	}
	return false, fmt.Errorf("expected a boolean-compatible value, got %#v", v)
}

func coerceFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, fmt.Errorf("expected a numeric scalar, got %#v", v)
}

func coerceFloatSlice(v any) ([]float64, bool) {
	switch xs := v.(type) {
	case []float64:
		return append([]float64(nil), xs...), true
	case []int:
		out := make([]float64, len(xs))
		for i, x := range xs {
			out[i] = float64(x)
		}
		return out, true
	case []any:
		out := make([]float64, len(xs))
		for i, x := range xs {
			f, err := coerceFloat(x)
			if err != nil {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	}
	return nil, false
}
