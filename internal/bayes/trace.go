package bayes

// Trace is the output of a sampling run: one column of draws per free
// variable (bernoulli values stored as 0/1), in sampling order. A Trace
// is never mutated after Sample returns; summarizers consume it
// read-only.
type Trace struct {
	vars       []string
	kinds      map[string]Kind
	draws      map[string][]float64
	warmup     int
	chains     int
	acceptance map[string]float64
}

// Vars lists the sampled variables in sampling order.
func (t *Trace) Vars() []string {
	return append([]string(nil), t.vars...)
}

// Len is the total number of retained draws across all chains.
func (t *Trace) Len() int {
	if len(t.vars) == 0 {
		return 0
	}
	return len(t.draws[t.vars[0]])
}

func (t *Trace) Warmup() int { return t.warmup }
func (t *Trace) Chains() int { return t.chains }

func (t *Trace) Kind(name string) (Kind, bool) {
	k, ok := t.kinds[name]
	return k, ok
}

// Values returns the draw column for a variable. The returned slice is
// the trace's backing storage; callers must not modify it.
func (t *Trace) Values(name string) ([]float64, bool) {
	vs, ok := t.draws[name]
	return vs, ok
}

// AcceptanceRate reports the post-warmup proposal acceptance rate for a
// variable (flip rate for bernoulli variables), averaged over chains.
func (t *Trace) AcceptanceRate(name string) (float64, bool) {
	r, ok := t.acceptance[name]
	return r, ok
}
