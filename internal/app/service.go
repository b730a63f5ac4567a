package app

import (
	"fmt"

	"github.com/awmpietro/golang-bayesnet-inference-case/internal/bayes"
)

type Compiler interface {
	Compile(dot string) (*bayes.Network, error)
}

type Sampler interface {
	Sample(net *bayes.Network, draws, warmup int) (*bayes.Trace, error)
}

type Cache interface {
	GetOrCompute(dot string, fn func() (*bayes.Network, error)) (*bayes.Network, error)
}

type Service struct {
	compiler Compiler
	sampler  Sampler
	cache    Cache
}

func NewService(compiler Compiler, sampler Sampler, cache Cache) *Service {
	return &Service{compiler: compiler, sampler: sampler, cache: cache}
}

type Request struct {
	ModelDOT string
	Evidence map[string]any
	Draws    int
	Warmup   int
}

type Result struct {
	Trace     *bayes.Trace
	Summaries []bayes.VarSummary
}

// Posterior compiles the model (cached), binds the evidence and draws
// posterior samples. The compiled network is shared and never mutated;
// evidence binding works on a copy.
func (s *Service) Posterior(req Request) (*Result, error) {
	if req.ModelDOT == "" {
		return nil, fmt.Errorf("model_dot is required")
	}

	net, err := s.cache.GetOrCompute(req.ModelDOT, func() (*bayes.Network, error) {
		return s.compiler.Compile(req.ModelDOT)
	})
	if err != nil {
		return nil, err
	}

	bound, err := net.Observe(bayes.Evidence(req.Evidence))
	if err != nil {
		return nil, err
	}

	trace, err := s.sampler.Sample(bound, req.Draws, req.Warmup)
	if err != nil {
		return nil, err
	}

	return &Result{Trace: trace, Summaries: bayes.Summaries(trace)}, nil
}
