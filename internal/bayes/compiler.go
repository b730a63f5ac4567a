package bayes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awalterschulze/gographviz"

	"github.com/awmpietro/golang-bayesnet-inference-case/internal/bayes/param"
)

// Compiler turns a DOT description of a belief network into a Network.
// Each node's label holds its distribution, edges declare parent -> child:
//
//	digraph bp {
//		parent_disease [label="bernoulli(0.5)"];
//		parent_bp [label="normal(parent_disease ? 60.0 : 50.0, 3.1623)"];
//		parent_disease -> parent_bp;
//	}
//
// Graphviz rejects attribute names outside its own vocabulary during
// analysis, so the distribution rides in the label, which also makes a
// rendered graph self-describing.
type Compiler struct{}

func NewCompiler() *Compiler { return &Compiler{} }

func (c *Compiler) Compile(dot string) (*Network, error) {
	ast, err := gographviz.ParseString(dot)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DOT: %w", err)
	}

	g := gographviz.NewGraph()
	if err := gographviz.Analyse(ast, g); err != nil {
		return nil, fmt.Errorf("failed to analyze DOT: %w", err)
	}

	net := &Network{
		Name:  strings.Trim(g.Name, `"`),
		Nodes: map[string]*Node{},
	}

	specs := map[string]*distSpec{}

	for _, n := range g.Nodes.Nodes {
		name := strings.Trim(n.Name, `"`)
		if _, dup := net.Nodes[name]; dup {
			return nil, fmt.Errorf("duplicate node %q", name)
		}
		net.Nodes[name] = &Node{Name: name}

		label := getAttr(n.Attrs, "label")
		if label == "" {
			return nil, fmt.Errorf("node %q is missing a distribution label", name)
		}
		spec, err := parseDistSpec(label)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", name, err)
		}
		specs[name] = spec
	}

	if len(net.Nodes) == 0 {
		return nil, fmt.Errorf("network has no nodes")
	}

	seen := map[[2]string]bool{}
	for _, e := range g.Edges.Edges {
		src := strings.Trim(e.Src, `"`)
		dst := strings.Trim(e.Dst, `"`)
		if _, ok := net.Nodes[src]; !ok {
			return nil, fmt.Errorf("edge references unknown source node %q", src)
		}
		child, ok := net.Nodes[dst]
		if !ok {
			return nil, fmt.Errorf("edge references unknown destination node %q", dst)
		}
		if seen[[2]string{src, dst}] {
			continue
		}
		seen[[2]string{src, dst}] = true
		child.Parents = append(child.Parents, src)
		net.Nodes[src].Children = append(net.Nodes[src].Children, dst)
	}

	order, err := topoOrder(net)
	if err != nil {
		return nil, err
	}
	net.Order = order

	// Kinds must be settled before parameter compilation: a parent's kind
	// decides the type its name carries inside a child's expression.
	for name, node := range net.Nodes {
		switch specs[name].kind {
		case "bernoulli":
			node.Kind = Bernoulli
		case "normal":
			node.Kind = Normal
		default:
			return nil, fmt.Errorf("node %q has unsupported distribution %q", name, specs[name].kind)
		}
	}

	for _, name := range net.Order {
		node := net.Nodes[name]
		spec := specs[name]
		env := parentEnv(net, node)

		switch node.Kind {
		case Bernoulli:
			if len(spec.args) != 1 {
				return nil, fmt.Errorf("node %q: bernoulli takes one argument (p), got %d", name, len(spec.args))
			}
			p, err := param.Compile(spec.args[0], env)
			if err != nil {
				return nil, fmt.Errorf("node %q: invalid p: %w", name, err)
			}
			if v, constant := p.MustConst(); constant && (v < 0 || v > 1) {
				return nil, fmt.Errorf("node %q: p=%v outside [0,1]", name, v)
			}
			node.P = p

		case Normal:
			if len(spec.args) != 2 {
				return nil, fmt.Errorf("node %q: normal takes two arguments (mean, sd), got %d", name, len(spec.args))
			}
			mean, err := param.Compile(spec.args[0], env)
			if err != nil {
				return nil, fmt.Errorf("node %q: invalid mean: %w", name, err)
			}
			sd, err := param.Compile(spec.args[1], nil)
			if err != nil {
				return nil, fmt.Errorf("node %q: invalid sd: %w", name, err)
			}
			sdv, constant := sd.MustConst()
			if !constant {
				return nil, fmt.Errorf("node %q: sd must be a constant, got %q", name, sd.Source())
			}
			if sdv <= 0 {
				return nil, fmt.Errorf("node %q: sd=%v must be positive", name, sdv)
			}
			node.Mean = mean
			node.SD = sdv
		}
	}

	return net, nil
}

// parentEnv builds the compile-time environment of a node's parameter
// expressions: each declared parent mapped to a zero value of its domain.
func parentEnv(net *Network, node *Node) map[string]any {
	if len(node.Parents) == 0 {
		return nil
	}
	env := make(map[string]any, len(node.Parents))
	for _, p := range node.Parents {
		if net.Nodes[p].Kind == Bernoulli {
			env[p] = false
		} else {
			env[p] = 0.0
		}
	}
	return env
}

// topoOrder runs Kahn's algorithm with a lexicographic tie-break so the
// sampling order is reproducible across runs.
func topoOrder(net *Network) ([]string, error) {
	indeg := make(map[string]int, len(net.Nodes))
	for name, node := range net.Nodes {
		indeg[name] = len(node.Parents)
	}

	ready := make([]string, 0, len(net.Nodes))
	for name, d := range indeg {
		if d == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(net.Nodes))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		released := false
		for _, child := range net.Nodes[name].Children {
			indeg[child]--
			if indeg[child] == 0 {
				ready = append(ready, child)
				released = true
			}
		}
		if released {
			sort.Strings(ready)
		}
	}

	if len(order) != len(net.Nodes) {
		return nil, fmt.Errorf("network contains a cycle")
	}
	return order, nil
}

// getAttr reads a Graphviz attribute, stripping the surrounding quotes.
func getAttr(attrs gographviz.Attrs, key string) string {
	val, ok := attrs[gographviz.Attr(key)]
	if !ok {
		return ""
	}

	val = strings.TrimSpace(val)
	if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
		val = val[1 : len(val)-1]
	}
	return val
}
