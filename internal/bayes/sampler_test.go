package bayes

import (
	"errors"
	"math"
	"testing"
)

func TestSampler_Sample_RejectsZeroDraws(t *testing.T) {
	net := compileModel(t)

	if _, err := NewSampler().Sample(net, 0, 0); err == nil {
		t.Fatalf("expected error for draws=0")
	}
	if _, err := NewSampler().Sample(net, -5, 0); err == nil {
		t.Fatalf("expected error for negative draws")
	}
	if _, err := NewSampler().Sample(net, 10, -1); err == nil {
		t.Fatalf("expected error for negative warmup")
	}
}

func TestSampler_Sample_RejectsFullyObservedNetwork(t *testing.T) {
	net, err := NewCompiler().Compile(`digraph g {
		a [label="bernoulli(0.5)"];
	}`)
	if err != nil {
		t.Fatal(err)
	}
	bound, err := net.Observe(Evidence{"a": true})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewSampler().Sample(bound, 100, 0); err == nil {
		t.Fatalf("expected error when nothing is free")
	}
}

func TestSampler_Sample_ObservedVariablesNotInTrace(t *testing.T) {
	net := compileModel(t)
	bound, err := net.Observe(Evidence{"child1_bp": 50.0})
	if err != nil {
		t.Fatal(err)
	}

	trace, err := NewSampler(WithSeed(1)).Sample(bound, 200, 100)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := trace.Values("child1_bp"); ok {
		t.Fatalf("observed variable present in trace")
	}
	if got := len(trace.Vars()); got != 5 {
		t.Fatalf("expected 5 sampled variables, got %d", got)
	}
	if trace.Len() != 200 {
		t.Fatalf("expected 200 draws, got %d", trace.Len())
	}
	if trace.Warmup() != 100 {
		t.Fatalf("expected warmup 100 recorded, got %d", trace.Warmup())
	}
	if trace.Chains() != 1 {
		t.Fatalf("expected 1 chain, got %d", trace.Chains())
	}
}

func TestSampler_Sample_DeterministicGivenSeed(t *testing.T) {
	net := compileModel(t)

	a, err := NewSampler(WithSeed(99)).Sample(net, 500, 200)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSampler(WithSeed(99)).Sample(net, 500, 200)
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range a.Vars() {
		xa, _ := a.Values(name)
		xb, _ := b.Values(name)
		if len(xa) != len(xb) {
			t.Fatalf("%s: length mismatch", name)
		}
		for i := range xa {
			if xa[i] != xb[i] {
				t.Fatalf("%s: draw %d differs: %v vs %v", name, i, xa[i], xb[i])
			}
		}
	}
}

func TestSampler_Sample_MultiChainMergesInOrder(t *testing.T) {
	net := compileModel(t)

	trace, err := NewSampler(WithSeed(7), WithChains(3)).Sample(net, 100, 50)
	if err != nil {
		t.Fatal(err)
	}

	if trace.Chains() != 3 {
		t.Fatalf("expected 3 chains, got %d", trace.Chains())
	}
	if trace.Len() != 300 {
		t.Fatalf("expected 300 merged draws, got %d", trace.Len())
	}

	// Merging is deterministic: rerun must be identical.
	again, err := NewSampler(WithSeed(7), WithChains(3)).Sample(net, 100, 50)
	if err != nil {
		t.Fatal(err)
	}
	xs, _ := trace.Values("parent_bp")
	ys, _ := again.Values("parent_bp")
	for i := range xs {
		if xs[i] != ys[i] {
			t.Fatalf("draw %d differs across reruns", i)
		}
	}
}

func TestSampler_Sample_AdjacentSeedsUseDistinctStreams(t *testing.T) {
	net := compileModel(t)

	a, err := NewSampler(WithSeed(5), WithChains(2)).Sample(net, 200, 100)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSampler(WithSeed(6), WithChains(2)).Sample(net, 200, 100)
	if err != nil {
		t.Fatal(err)
	}

	// The second chain of seed 5 must not replay the first chain of
	// seed 6: continuous draws from independent streams never coincide
	// over a whole column.
	xa, _ := a.Values("parent_bp")
	xb, _ := b.Values("parent_bp")
	same := true
	for i := 0; i < 200; i++ {
		if xa[200+i] != xb[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("seeds 5 and 6 share a chain stream")
	}
}

func TestSampler_Sample_PriorRootNearHalf(t *testing.T) {
	net := compileModel(t)

	trace, err := NewSampler(WithSeed(5)).Sample(net, 5_000, 500)
	if err != nil {
		t.Fatal(err)
	}

	est, err := EmpiricalProbability(trace, "parent_disease")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(est.Mean-0.5) > 4*est.MCError+0.03 {
		t.Fatalf("prior root probability %v ± %v too far from 0.5", est.Mean, est.MCError)
	}
	if est.LowConfidence {
		t.Fatalf("5000 draws flagged low confidence")
	}
}

func TestSampler_Sample_ContinuousLeafTracksParent(t *testing.T) {
	net := compileModel(t)
	bound, err := net.Observe(Evidence{"parent_disease": true})
	if err != nil {
		t.Fatal(err)
	}

	trace, err := NewSampler(WithSeed(21)).Sample(bound, 5_000, 1_000)
	if err != nil {
		t.Fatal(err)
	}

	// With the root fixed true, parent_bp is Normal(60, sqrt(10)).
	xs, _ := trace.Values("parent_bp")
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if math.Abs(mean-60.0) > 0.6 {
		t.Fatalf("expected parent_bp mean near 60, got %v", mean)
	}
}

func TestSampler_Sample_DivergenceOnUnsupportedEvidence(t *testing.T) {
	// y can never be true, whatever x is; observing y=true leaves no
	// finite-density state.
	net, err := NewCompiler().Compile(`digraph g {
		x [label="bernoulli(0.5)"];
		y [label="bernoulli(x ? 0.0 : 0.0)"];
		x -> y;
	}`)
	if err != nil {
		t.Fatal(err)
	}
	bound, err := net.Observe(Evidence{"y": true})
	if err != nil {
		t.Fatal(err)
	}

	_, err = NewSampler(WithSeed(1)).Sample(bound, 100, 10)
	var div *DivergenceError
	if !errors.As(err, &div) {
		t.Fatalf("expected DivergenceError, got %v", err)
	}
}

func TestSampler_Sample_SequenceEvidencePullsPosterior(t *testing.T) {
	net := compileModel(t)

	// Five independent low readings should pull the root down harder
	// than a single one.
	single, err := net.Observe(Evidence{"child1_bp": 50.0})
	if err != nil {
		t.Fatal(err)
	}
	many, err := net.Observe(Evidence{"child1_bp": []float64{50, 50, 50, 50, 50}})
	if err != nil {
		t.Fatal(err)
	}

	s := NewSampler(WithSeed(13))
	traceSingle, err := s.Sample(single, 10_000, 1_000)
	if err != nil {
		t.Fatal(err)
	}
	traceMany, err := s.Sample(many, 10_000, 1_000)
	if err != nil {
		t.Fatal(err)
	}

	pSingle, err := EmpiricalProbability(traceSingle, "child1_disease")
	if err != nil {
		t.Fatal(err)
	}
	pMany, err := EmpiricalProbability(traceMany, "child1_disease")
	if err != nil {
		t.Fatal(err)
	}
	if pMany.Mean >= pSingle.Mean {
		t.Fatalf("expected repeated evidence to sharpen the posterior: single=%v many=%v", pSingle.Mean, pMany.Mean)
	}
}

func TestSampler_Sample_ReportsAcceptance(t *testing.T) {
	net := compileModel(t)

	trace, err := NewSampler(WithSeed(2)).Sample(net, 2_000, 500)
	if err != nil {
		t.Fatal(err)
	}

	rate, ok := trace.AcceptanceRate("parent_bp")
	if !ok {
		t.Fatalf("expected acceptance rate for parent_bp")
	}
	if rate <= 0.05 || rate > 1.0 {
		t.Fatalf("implausible acceptance rate %v", rate)
	}
}
