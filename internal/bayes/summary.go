package bayes

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// LowConfidenceDraws is the trace length below which estimates are
// flagged as low-confidence instead of being rejected.
const LowConfidenceDraws = 100

type ProbabilityEstimate struct {
	Mean          float64
	MCError       float64
	LowConfidence bool
}

// EmpiricalProbability estimates P(var = true) from a trace, with a
// batch-means Monte Carlo standard error so the reported band absorbs
// chain autocorrelation.
func EmpiricalProbability(t *Trace, name string) (ProbabilityEstimate, error) {
	xs, kind, err := traceColumn(t, name)
	if err != nil {
		return ProbabilityEstimate{}, err
	}
	if kind != Bernoulli {
		return ProbabilityEstimate{}, fmt.Errorf("variable %q is not discrete", name)
	}

	return ProbabilityEstimate{
		Mean:          stat.Mean(xs, nil),
		MCError:       mcStandardError(xs),
		LowConfidence: len(xs) < LowConfidenceDraws,
	}, nil
}

// DensityAt evaluates a Gaussian kernel density estimate of a continuous
// variable's posterior marginal at x, with Silverman's-rule bandwidth.
func DensityAt(t *Trace, name string, x float64) (float64, error) {
	xs, kind, err := traceColumn(t, name)
	if err != nil {
		return 0, err
	}
	if kind != Normal {
		return 0, fmt.Errorf("variable %q is not continuous", name)
	}

	h := silvermanBandwidth(xs)
	if h <= 0 || math.IsNaN(h) {
		return 0, fmt.Errorf("degenerate trace for %q: zero kernel bandwidth", name)
	}

	sum := 0.0
	for _, xi := range xs {
		sum += distuv.UnitNormal.Prob((x - xi) / h)
	}
	return sum / (float64(len(xs)) * h), nil
}

type VarSummary struct {
	Var           string
	Kind          Kind
	Mean          float64
	StdDev        float64
	MCError       float64
	LowConfidence bool
}

// Summaries reduces every sampled variable to a point estimate with an
// uncertainty bound, in sampling order.
func Summaries(t *Trace) []VarSummary {
	out := make([]VarSummary, 0, len(t.vars))
	for _, name := range t.vars {
		xs := t.draws[name]
		s := VarSummary{
			Var:           name,
			Kind:          t.kinds[name],
			Mean:          stat.Mean(xs, nil),
			MCError:       mcStandardError(xs),
			LowConfidence: len(xs) < LowConfidenceDraws,
		}
		if len(xs) > 1 {
			s.StdDev = stat.StdDev(xs, nil)
		}
		out = append(out, s)
	}
	return out
}

func traceColumn(t *Trace, name string) ([]float64, Kind, error) {
	if t == nil {
		return nil, 0, fmt.Errorf("trace is nil")
	}
	xs, ok := t.Values(name)
	if !ok {
		return nil, 0, fmt.Errorf("variable %q is not in the trace", name)
	}
	if len(xs) == 0 {
		return nil, 0, fmt.Errorf("trace for %q is empty", name)
	}
	kind, _ := t.Kind(name)
	return xs, kind, nil
}

// mcStandardError estimates the Monte Carlo standard error of the
// sample mean via batch means (about √n batches), falling back to the
// independent-sample formula for tiny traces.
func mcStandardError(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	if n < 16 {
		return stat.StdDev(xs, nil) / math.Sqrt(float64(n))
	}

	batch := int(math.Sqrt(float64(n)))
	nBatches := n / batch
	means := make([]float64, nBatches)
	for i := 0; i < nBatches; i++ {
		means[i] = stat.Mean(xs[i*batch:(i+1)*batch], nil)
	}
	return stat.StdDev(means, nil) / math.Sqrt(float64(nBatches))
}

// silvermanBandwidth is the robust Silverman rule:
// 0.9 * min(sd, iqr/1.349) * n^(-1/5).
func silvermanBandwidth(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	sd := stat.StdDev(sorted, nil)
	iqr := stat.Quantile(0.75, stat.Empirical, sorted, nil) - stat.Quantile(0.25, stat.Empirical, sorted, nil)

	spread := sd
	if iqr > 0 && iqr/1.349 < spread {
		spread = iqr / 1.349
	}
	return 0.9 * spread * math.Pow(float64(len(xs)), -0.2)
}
