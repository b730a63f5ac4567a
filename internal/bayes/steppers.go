package bayes

import (
	"math"

	"golang.org/x/exp/rand"
)

// stepper is the per-variable update strategy, dispatched on node kind.
type stepper interface {
	step(state map[string]any, rng *rand.Rand) error
	tune()
	resetStats()
	acceptanceRate() float64
	varName() string
	diverged() error
}

// gibbsStepper resamples a bernoulli variable exactly from its
// conditional given the Markov blanket.
type gibbsStepper struct {
	node    *Node
	blanket []*Node

	steps     int
	flips     int
	noSupport int
}

func (g *gibbsStepper) varName() string { return g.node.Name }

func (g *gibbsStepper) step(state map[string]any, rng *rand.Rand) error {
	cur := state[g.node.Name].(bool)

	state[g.node.Name] = false
	lp0, err := blanketLogProb(g.blanket, state)
	if err != nil {
		return err
	}
	state[g.node.Name] = true
	lp1, err := blanketLogProb(g.blanket, state)
	if err != nil {
		return err
	}

	g.steps++

	inf0 := math.IsInf(lp0, -1)
	inf1 := math.IsInf(lp1, -1)

	var next bool
	switch {
	case inf0 && inf1:
		// Neither value has support; stay put and count it.
		g.noSupport++
		next = cur
	case inf0:
		next = true
	case inf1:
		next = false
	default:
		pTrue := 1.0 / (1.0 + math.Exp(lp0-lp1))
		next = rng.Float64() < pTrue
	}

	if next != cur {
		g.flips++
	}
	state[g.node.Name] = next
	return nil
}

func (g *gibbsStepper) tune() {}

func (g *gibbsStepper) resetStats() {
	g.steps, g.flips, g.noSupport = 0, 0, 0
}

func (g *gibbsStepper) acceptanceRate() float64 {
	if g.steps == 0 {
		return 0
	}
	return float64(g.flips) / float64(g.steps)
}

func (g *gibbsStepper) diverged() error {
	if g.steps > 0 && g.noSupport == g.steps {
		return &DivergenceError{Var: g.node.Name, Reason: "no supported value under the evidence"}
	}
	return nil
}

// walkStepper updates a normal variable with a Gaussian random-walk
// Metropolis proposal. The proposal scale is adapted during warmup
// toward a healthy acceptance rate.
type walkStepper struct {
	node    *Node
	blanket []*Node
	scale   float64

	steps   int
	accepts int

	windowSteps   int
	windowAccepts int
}

func (w *walkStepper) varName() string { return w.node.Name }

func (w *walkStepper) step(state map[string]any, rng *rand.Rand) error {
	cur := state[w.node.Name].(float64)

	lpCur, err := blanketLogProb(w.blanket, state)
	if err != nil {
		return err
	}

	prop := cur + w.scale*rng.NormFloat64()
	state[w.node.Name] = prop
	lpProp, err := blanketLogProb(w.blanket, state)
	if err != nil {
		return err
	}

	w.steps++
	w.windowSteps++

	accept := false
	if !math.IsInf(lpProp, -1) && !math.IsNaN(lpProp) {
		if math.IsInf(lpCur, -1) || math.Log(rng.Float64()) < lpProp-lpCur {
			accept = true
		}
	}

	if accept {
		w.accepts++
		w.windowAccepts++
	} else {
		state[w.node.Name] = cur
	}
	return nil
}

// tune rescales the proposal from the acceptance rate of the last
// warmup window, using the standard Metropolis tuning ladder.
func (w *walkStepper) tune() {
	if w.windowSteps == 0 {
		return
	}
	rate := float64(w.windowAccepts) / float64(w.windowSteps)
	switch {
	case rate < 0.001:
		w.scale *= 0.1
	case rate < 0.05:
		w.scale *= 0.5
	case rate < 0.2:
		w.scale *= 0.9
	case rate > 0.95:
		w.scale *= 10.0
	case rate > 0.75:
		w.scale *= 2.0
	case rate > 0.5:
		w.scale *= 1.1
	}
	w.windowSteps, w.windowAccepts = 0, 0
}

func (w *walkStepper) resetStats() {
	w.steps, w.accepts = 0, 0
	w.windowSteps, w.windowAccepts = 0, 0
}

func (w *walkStepper) acceptanceRate() float64 {
	if w.steps == 0 {
		return 0
	}
	return float64(w.accepts) / float64(w.steps)
}

func (w *walkStepper) diverged() error {
	if w.steps >= 1000 && w.acceptanceRate() < 0.001 {
		return &DivergenceError{Var: w.node.Name, Reason: "proposal acceptance collapsed; retry with a longer warmup"}
	}
	return nil
}
