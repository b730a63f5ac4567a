package bayes

import (
	"github.com/awmpietro/golang-bayesnet-inference-case/internal/bayes/param"
)

type Kind int

const (
	Bernoulli Kind = iota
	Normal
)

func (k Kind) String() string {
	switch k {
	case Bernoulli:
		return "bernoulli"
	case Normal:
		return "normal"
	default:
		return "unknown"
	}
}

type Network struct {
	Name  string
	Nodes map[string]*Node

	// Order is the sampling order: topological, lexicographic tie-break.
	Order []string
}

type Node struct {
	Name    string
	Kind    Kind
	Parents []string

	// Children is derived by the compiler; it bounds the Markov blanket
	// walked by the sampler.
	Children []string

	// P is the success parameter of a bernoulli node.
	P *param.Compiled

	// Mean and SD parameterize a normal node. SD is a constant.
	Mean *param.Compiled
	SD   float64

	Observed bool

	// ObservedValue holds scalar evidence: bool for bernoulli, float64
	// for normal. ObservedValues holds sequence evidence (leaf normal
	// nodes only); when set, ObservedValue is unused.
	ObservedValue  any
	ObservedValues []float64
}

// FreeVars returns the variables the sampler actually draws, in sampling order.
func (n *Network) FreeVars() []string {
	out := make([]string, 0, len(n.Order))
	for _, name := range n.Order {
		if !n.Nodes[name].Observed {
			out = append(out, name)
		}
	}
	return out
}

func (n *Network) clone() *Network {
	c := &Network{
		Name:  n.Name,
		Nodes: make(map[string]*Node, len(n.Nodes)),
		Order: append([]string(nil), n.Order...),
	}
	for name, node := range n.Nodes {
		cp := *node
		cp.Parents = append([]string(nil), node.Parents...)
		cp.Children = append([]string(nil), node.Children...)
		cp.ObservedValues = append([]float64(nil), node.ObservedValues...)
		c.Nodes[name] = &cp
	}
	return c
}
