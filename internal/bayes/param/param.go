// Package param compiles the deterministic parameter expressions of a
// belief network: a node's probability or mean is either a numeric
// constant or an expression over its declared parents' current values,
// e.g. `parent_disease ? 60.0 : 50.0`.
package param

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

type Compiled struct {
	src      string
	constant bool
	value    float64
	prog     *vm.Program
}

// Compile builds an evaluator for src. parents maps each declared parent
// name to a zero value of its domain (false for discrete, 0.0 for
// continuous); any identifier outside that set is a compile error.
func Compile(src string, parents map[string]any) (*Compiled, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("empty parameter expression")
	}

	if v, err := strconv.ParseFloat(src, 64); err == nil {
		return &Compiled{src: src, constant: true, value: v}, nil
	}

	if err := Validate(src); err != nil {
		return nil, err
	}

	env := make(map[string]any, len(parents))
	for k, v := range parents {
		env[k] = v
	}

	prog, err := expr.Compile(src, expr.Env(env), expr.AsFloat64())
	if err != nil {
		return nil, fmt.Errorf("invalid parameter expression %q: %w", src, err)
	}

	return &Compiled{src: src, prog: prog}, nil
}

// MustConst reports the value of a constant expression.
func (c *Compiled) MustConst() (float64, bool) {
	return c.value, c.constant
}

func (c *Compiled) Source() string { return c.src }

// Eval computes the parameter under the given parent values.
func (c *Compiled) Eval(vars map[string]any) (float64, error) {
	if c.constant {
		return c.value, nil
	}

	out, err := expr.Run(c.prog, vars)
	if err != nil {
		return 0, fmt.Errorf("eval %q: %w", c.src, err)
	}

	f, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("expression %q must evaluate to a number (got %T)", c.src, out)
	}
	return f, nil
}
