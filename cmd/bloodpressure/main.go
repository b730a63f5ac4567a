// Command bloodpressure walks through the parent/children
// disease-and-blood-pressure model: the unconditioned prior, the
// posterior of the root after observing one child's blood pressure, and
// a kernel density query on the other child's blood pressure.
package main

import (
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"strings"

	"github.com/awmpietro/golang-bayesnet-inference-case/internal/app"
	"github.com/awmpietro/golang-bayesnet-inference-case/internal/bayes"
	"github.com/awmpietro/golang-bayesnet-inference-case/internal/bayes/cache"
	"github.com/awmpietro/golang-bayesnet-inference-case/internal/config"
)

const modelDOT = `digraph bloodpressure {
	parent_disease [label="bernoulli(0.5)"];
	child1_disease [label="bernoulli(parent_disease ? 0.9 : 0.1)"];
	child2_disease [label="bernoulli(parent_disease ? 0.9 : 0.1)"];
	parent_bp [label="normal(parent_disease ? 60.0 : 50.0, 3.1622776601683795)"];
	child1_bp [label="normal(child1_disease ? 60.0 : 50.0, 3.1622776601683795)"];
	child2_bp [label="normal(child2_disease ? 60.0 : 50.0, 3.1622776601683795)"];

	parent_disease -> child1_disease;
	parent_disease -> child2_disease;
	parent_disease -> parent_bp;
	child1_disease -> child1_bp;
	child2_disease -> child2_bp;
}`

func main() {
	cfg := config.Load()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	obs := bayes.NewAsyncChainObserver(bayes.NewChainLogger(logger), cfg.ObsBuffer)
	defer obs.Close()

	opts := []bayes.SamplerOption{
		bayes.WithChains(cfg.Chains),
		bayes.WithChainObserver(obs),
	}
	if cfg.SeedSet {
		opts = append(opts, bayes.WithSeed(cfg.Seed))
	}

	svc := app.NewService(bayes.NewCompiler(), bayes.NewSampler(opts...), cache.NewInMemory(cfg.CacheMaxItems))

	fmt.Printf("draws=%d warmup=%d chains=%d\n\n", cfg.Draws, cfg.Warmup, cfg.Chains)

	fmt.Println("== prior (no evidence) ==")
	res, ok := posterior(svc, cfg, nil)
	if ok {
		fmt.Printf("retained %d draws (%d chains, %d warmup each)\n",
			res.Trace.Len(), res.Trace.Chains(), res.Trace.Warmup())
		printSummaries(res.Summaries)
		fmt.Println()
	}

	fmt.Println("== evidence: child1_bp = 50 ==")
	res, ok = posterior(svc, cfg, map[string]any{"child1_bp": 50.0})
	if ok {
		est, err := bayes.EmpiricalProbability(res.Trace, "parent_disease")
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("P(parent_disease) = %.5f ± %.5f (analytic 0.10535)\n", est.Mean, est.MCError)
		printSummaries(res.Summaries)
		fmt.Println()
	}

	fmt.Println("== evidence: child2_bp = 50, density of child1_bp at 50 ==")
	res, ok = posterior(svc, cfg, map[string]any{"child2_bp": 50.0})
	if ok {
		d, err := bayes.DensityAt(res.Trace, "child1_bp", 50.0)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("density(child1_bp = 50) = %.5f (analytic 0.10306)\n\n", d)

		xs, _ := res.Trace.Values("child1_bp")
		printHistogram("child1_bp", xs, 16)
	}
}

func posterior(svc *app.Service, cfg config.Runtime, evidence map[string]any) (*app.Result, bool) {
	res, err := svc.Posterior(app.Request{
		ModelDOT: modelDOT,
		Evidence: evidence,
		Draws:    cfg.Draws,
		Warmup:   cfg.Warmup,
	})
	if err != nil {
		var div *bayes.DivergenceError
		if errors.As(err, &div) {
			fmt.Printf("chain diverged (%v); rerun with a larger BAYES_WARMUP\n\n", div)
			return nil, false
		}
		log.Fatal(err)
	}
	return res, true
}

func printSummaries(summaries []bayes.VarSummary) {
	fmt.Printf("%-16s %-10s %10s %10s %10s\n", "var", "kind", "mean", "sd", "mc_error")
	for _, s := range summaries {
		flag := ""
		if s.LowConfidence {
			flag = "  (low confidence)"
		}
		fmt.Printf("%-16s %-10s %10.4f %10.4f %10.5f%s\n", s.Var, s.Kind, s.Mean, s.StdDev, s.MCError, flag)
	}
}

func printHistogram(name string, xs []float64, bins int) {
	if len(xs) == 0 || bins <= 0 {
		return
	}

	lo, hi := xs[0], xs[0]
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if hi == lo {
		fmt.Printf("%s: all draws at %.4f\n", name, lo)
		return
	}

	counts := make([]int, bins)
	width := (hi - lo) / float64(bins)
	for _, x := range xs {
		i := int((x - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		counts[i]++
	}

	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}

	fmt.Printf("%s histogram (%d draws)\n", name, len(xs))
	for i, c := range counts {
		bar := strings.Repeat("#", c*50/max)
		fmt.Printf("%8.2f | %s\n", lo+(float64(i)+0.5)*width, bar)
	}
}
