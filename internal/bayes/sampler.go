package bayes

import (
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// DivergenceError signals a chain that cannot be trusted: either no
// finite-density initial state exists under the evidence, or a proposal
// scheme stopped moving. Callers should retry with a longer warmup or
// report the failure instead of reading the trace.
type DivergenceError struct {
	Var    string
	Reason string
}

func (e *DivergenceError) Error() string {
	if e.Var == "" {
		return fmt.Sprintf("sampling diverged: %s", e.Reason)
	}
	return fmt.Sprintf("sampling diverged at %q: %s", e.Var, e.Reason)
}

// Sampler draws approximate posterior samples from a Network with a
// Metropolis-within-Gibbs scheme: exact Gibbs updates for bernoulli
// variables, adaptive random-walk Metropolis for normal variables.
type Sampler struct {
	seed     uint64
	seedSet  bool
	chains   int
	maxInit  int
	observer ChainObserver
}

type SamplerOption func(*Sampler)

// WithSeed pins the random source. Given the same network, seed, chain
// count and draw counts, Sample produces a bit-identical Trace.
func WithSeed(seed uint64) SamplerOption {
	return func(s *Sampler) {
		s.seed = seed
		s.seedSet = true
	}
}

// WithChains runs n independent chains and merges their draws in chain
// order. Chains are a diagnostic aid, not a correctness requirement.
func WithChains(n int) SamplerOption {
	return func(s *Sampler) {
		if n > 0 {
			s.chains = n
		}
	}
}

func WithChainObserver(observer ChainObserver) SamplerOption {
	return func(s *Sampler) {
		s.observer = observer
	}
}

func NewSampler(opts ...SamplerOption) *Sampler {
	s := &Sampler{chains: 1, maxInit: 100}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sample draws `draws` retained samples per chain after discarding
// `warmup` adaptation draws. Observed variables never appear in the
// returned Trace.
func (s *Sampler) Sample(net *Network, draws, warmup int) (*Trace, error) {
	if net == nil {
		return nil, fmt.Errorf("network is nil")
	}
	if draws <= 0 {
		return nil, fmt.Errorf("draws must be a positive integer (got %d)", draws)
	}
	if warmup < 0 {
		return nil, fmt.Errorf("warmup must not be negative (got %d)", warmup)
	}

	free := net.FreeVars()
	if len(free) == 0 {
		return nil, fmt.Errorf("every variable is observed; nothing to sample")
	}

	seed := s.seed
	if !s.seedSet {
		seed = uint64(time.Now().UnixNano())
	}

	results := make([]*chainResult, s.chains)
	errs := make([]error, s.chains)

	var wg sync.WaitGroup
	for c := 0; c < s.chains; c++ {
		wg.Add(1)
		go func(chain int) {
			defer wg.Done()
			res, err := s.runChain(net, free, draws, warmup, chainSeed(seed, chain), chain)
			results[chain], errs[chain] = res, err
		}(c)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	trace := &Trace{
		vars:       free,
		kinds:      make(map[string]Kind, len(free)),
		draws:      make(map[string][]float64, len(free)),
		warmup:     warmup,
		chains:     s.chains,
		acceptance: make(map[string]float64, len(free)),
	}
	for _, name := range free {
		trace.kinds[name] = net.Nodes[name].Kind
		col := make([]float64, 0, draws*s.chains)
		rate := 0.0
		for _, res := range results {
			col = append(col, res.draws[name]...)
			rate += res.acceptance[name]
		}
		trace.draws[name] = col
		trace.acceptance[name] = rate / float64(s.chains)
	}

	return trace, nil
}

// chainSeed derives a per-chain seed with a splitmix64 round. A plain
// seed+chain offset would make chain 1 of seed s replay chain 0 of
// seed s+1.
func chainSeed(seed uint64, chain int) uint64 {
	z := seed + uint64(chain+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

type chainResult struct {
	draws      map[string][]float64
	acceptance map[string]float64
}

func (s *Sampler) runChain(net *Network, free []string, draws, warmup int, seed uint64, chain int) (*chainResult, error) {
	started := time.Now()
	rng := rand.New(rand.NewSource(seed))

	state, err := s.initState(net, rng)
	if err != nil {
		return nil, err
	}

	steppers := make([]stepper, len(free))
	for i, name := range free {
		node := net.Nodes[name]
		blanket := blanketOf(net, node)
		switch node.Kind {
		case Bernoulli:
			steppers[i] = &gibbsStepper{node: node, blanket: blanket}
		case Normal:
			steppers[i] = &walkStepper{node: node, blanket: blanket, scale: node.SD}
		}
	}

	const tuneInterval = 100

	res := &chainResult{
		draws:      make(map[string][]float64, len(free)),
		acceptance: make(map[string]float64, len(free)),
	}
	for _, name := range free {
		res.draws[name] = make([]float64, 0, draws)
	}

	total := warmup + draws
	for i := 0; i < total; i++ {
		for _, st := range steppers {
			if err := st.step(state, rng); err != nil {
				return nil, fmt.Errorf("chain %d: %w", chain, err)
			}
		}

		if i < warmup {
			if (i+1)%tuneInterval == 0 {
				for _, st := range steppers {
					st.tune()
				}
			}
			if i == warmup-1 {
				for _, st := range steppers {
					st.resetStats()
				}
			}
			continue
		}

		for _, name := range free {
			res.draws[name] = append(res.draws[name], asFloat(state[name]))
		}
	}

	for _, st := range steppers {
		res.acceptance[st.varName()] = st.acceptanceRate()
		if err := st.diverged(); err != nil {
			return nil, err
		}
	}

	if s.observer != nil {
		s.observer.ObserveChain(ChainStats{
			Chain:      chain,
			Draws:      draws,
			Warmup:     warmup,
			Duration:   time.Since(started),
			Acceptance: res.acceptance,
		})
	}

	return res, nil
}

// initState forward-samples the free variables from their priors until
// the joint density is finite under the evidence.
func (s *Sampler) initState(net *Network, rng *rand.Rand) (map[string]any, error) {
	for attempt := 0; attempt < s.maxInit; attempt++ {
		state := make(map[string]any, len(net.Order))

		ok := true
		for _, name := range net.Order {
			node := net.Nodes[name]

			if node.Observed {
				if node.ObservedValues == nil {
					state[name] = node.ObservedValue
				}
				continue
			}

			switch node.Kind {
			case Bernoulli:
				p, err := node.P.Eval(state)
				if err != nil {
					return nil, err
				}
				if p < 0 || p > 1 {
					ok = false
				} else {
					state[name] = rng.Float64() < p
				}
			case Normal:
				mu, err := node.Mean.Eval(state)
				if err != nil {
					return nil, err
				}
				state[name] = mu + node.SD*rng.NormFloat64()
			}
			if !ok {
				break
			}
		}
		if !ok {
			continue
		}

		lp := 0.0
		for _, name := range net.Order {
			term, err := nodeLogProb(net.Nodes[name], state)
			if err != nil {
				return nil, err
			}
			lp += term
		}
		if !math.IsInf(lp, -1) && !math.IsNaN(lp) {
			return state, nil
		}
	}

	return nil, &DivergenceError{Reason: "no finite-density initial state found; evidence may be unsupported by the model"}
}

// blanketOf collects the nodes whose density terms depend on the given
// variable: the node itself plus its children.
func blanketOf(net *Network, node *Node) []*Node {
	out := make([]*Node, 0, 1+len(node.Children))
	out = append(out, node)
	for _, c := range node.Children {
		out = append(out, net.Nodes[c])
	}
	return out
}

func blanketLogProb(blanket []*Node, state map[string]any) (float64, error) {
	lp := 0.0
	for _, n := range blanket {
		term, err := nodeLogProb(n, state)
		if err != nil {
			return 0, err
		}
		lp += term
		if math.IsInf(lp, -1) {
			return math.Inf(-1), nil
		}
	}
	return lp, nil
}

// nodeLogProb is the log density contribution of one node given the
// current state. Out-of-range probability parameters are treated as
// zero-support (-Inf), not as errors: a proposal that pushes a parent
// there is simply rejected.
func nodeLogProb(n *Node, state map[string]any) (float64, error) {
	switch n.Kind {
	case Bernoulli:
		p, err := n.P.Eval(state)
		if err != nil {
			return 0, err
		}
		if p < 0 || p > 1 {
			return math.Inf(-1), nil
		}
		x := 0.0
		if state[n.Name].(bool) {
			x = 1.0
		}
		return distuv.Bernoulli{P: p}.LogProb(x), nil

	case Normal:
		mu, err := n.Mean.Eval(state)
		if err != nil {
			return 0, err
		}
		dist := distuv.Normal{Mu: mu, Sigma: n.SD}
		if n.ObservedValues != nil {
			lp := 0.0
			for _, v := range n.ObservedValues {
				lp += dist.LogProb(v)
			}
			return lp, nil
		}
		return dist.LogProb(state[n.Name].(float64)), nil
	}
	return 0, fmt.Errorf("node %q has unknown kind", n.Name)
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case bool:
		if x {
			return 1.0
		}
		return 0.0
	case float64:
		return x
	}
	return math.NaN()
}
