// Command convergence checks the Monte Carlo error scaling of the
// sampler on the unconditioned blood-pressure model: the root posterior
// must sit at 0.5 and its standard error must shrink roughly as 1/√n.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/awmpietro/golang-bayesnet-inference-case/internal/bayes"
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
	small := flag.Int("small", 1_000, "small draw count")
	large := flag.Int("large", 100_000, "large draw count")
	warmup := flag.Int("warmup", 1_000, "warmup draws per run")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *small <= 0 || *large <= *small {
		fmt.Fprintln(os.Stderr, "need 0 < small < large")
		os.Exit(2)
	}

	compiler := bayes.NewCompiler()
	net, err := compiler.Compile(modelDOT)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile: %v\n", err)
		os.Exit(1)
	}

	meanSmall, errSmall := run(net, *small, *warmup, *seed)
	meanLarge, errLarge := run(net, *large, *warmup, *seed+1)

	fmt.Printf("Convergence study finished\n")
	fmt.Printf("- small_draws: %d\n", *small)
	fmt.Printf("- small_mean: %.5f\n", meanSmall)
	fmt.Printf("- small_mc_error: %.5f\n", errSmall)
	fmt.Printf("- large_draws: %d\n", *large)
	fmt.Printf("- large_mean: %.5f\n", meanLarge)
	fmt.Printf("- large_mc_error: %.5f\n", errLarge)

	// 1/√n scaling with generous slack for estimator noise.
	wantRatio := math.Sqrt(float64(*small) / float64(*large))
	maxLargeErr := errSmall * wantRatio * 2.5
	fmt.Printf("- expected_error_ratio: %.4f\n", wantRatio)

	meanOK := math.Abs(meanSmall-0.5) <= 4*errSmall+0.01 && math.Abs(meanLarge-0.5) <= 4*errLarge+0.005
	scaleOK := errLarge <= maxLargeErr

	if meanOK && scaleOK {
		fmt.Println("PASS: posterior at 0.5 and MC error shrinks ~ 1/sqrt(n)")
		return
	}

	fmt.Println("FAIL: posterior mean or error scaling out of band")
	os.Exit(1)
}

func run(net *bayes.Network, draws, warmup int, seed uint64) (mean, mcErr float64) {
	sampler := bayes.NewSampler(bayes.WithSeed(seed))
	trace, err := sampler.Sample(net, draws, warmup)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sample: %v\n", err)
		os.Exit(1)
	}

	est, err := bayes.EmpiricalProbability(trace, "parent_disease")
	if err != nil {
		fmt.Fprintf(os.Stderr, "summarize: %v\n", err)
		os.Exit(1)
	}
	return est.Mean, est.MCError
}
