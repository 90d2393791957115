// Package causal builds a directed influence graph over the field
// references of a rule and derives intervention, counterfactual, and
// confounding test cases by traversing it.
package causal

import (
	"sort"

	"github.com/metacogma/edc-rule-validator-sub000/condition"
)

// EdgeKind tags why two fields influence each other.
type EdgeKind string

const (
	EdgeTemporal   EdgeKind = "temporal"
	EdgeForm       EdgeKind = "form"
	EdgeComparison EdgeKind = "comparison"
)

// Edge is one directed influence. Op is set for comparison edges only.
type Edge struct {
	Kind EdgeKind
	Op   condition.Op
}

// Graph is a directed graph over Form.Field references. At most one edge
// exists per ordered node pair; adding again overwrites, so later
// construction phases refine earlier ones.
type Graph struct {
	nodes map[string]bool
	out   map[string]map[string]Edge
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]bool),
		out:   make(map[string]map[string]Edge),
	}
}

// AddNode registers a field reference.
func (g *Graph) AddNode(ref string) {
	g.nodes[ref] = true
}

// AddEdge adds or replaces the directed edge from one node to another.
// Both endpoints are registered as nodes.
func (g *Graph) AddEdge(from, to string, edge Edge) {
	g.AddNode(from)
	g.AddNode(to)
	m, ok := g.out[from]
	if !ok {
		m = make(map[string]Edge)
		g.out[from] = m
	}
	m[to] = edge
}

// Nodes returns all nodes in sorted order.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len reports the node count.
func (g *Graph) Len() int { return len(g.nodes) }

// Edge returns the direct edge between two nodes, if present.
func (g *Graph) Edge(from, to string) (Edge, bool) {
	e, ok := g.out[from][to]
	return e, ok
}

// OutDegree reports how many distinct nodes one node points at.
func (g *Graph) OutDegree(node string) int {
	return len(g.out[node])
}

// degree counts in plus out edges, the basis for degree centrality.
func (g *Graph) degree(node string) int {
	d := len(g.out[node])
	for from, m := range g.out {
		if from == node {
			continue
		}
		if _, ok := m[node]; ok {
			d++
		}
	}
	return d
}

// TopCentral returns up to k nodes ordered by descending degree
// centrality, ties broken by name for determinism.
func (g *Graph) TopCentral(k int) []string {
	nodes := g.Nodes()
	sort.SliceStable(nodes, func(i, j int) bool {
		di, dj := g.degree(nodes[i]), g.degree(nodes[j])
		if di != dj {
			return di > dj
		}
		return nodes[i] < nodes[j]
	})
	if len(nodes) > k {
		nodes = nodes[:k]
	}
	return nodes
}

// Descendants returns every node reachable from the start node,
// excluding the node itself, in sorted order.
func (g *Graph) Descendants(node string) []string {
	seen := map[string]bool{node: true}
	frontier := []string{node}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		for to := range g.out[next] {
			if !seen[to] {
				seen[to] = true
				frontier = append(frontier, to)
			}
		}
	}
	delete(seen, node)
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Confounders returns nodes with more than one outgoing edge, in sorted
// order. A confounder influences multiple fields at once.
func (g *Graph) Confounders() []string {
	var out []string
	for _, n := range g.Nodes() {
		if g.OutDegree(n) > 1 {
			out = append(out, n)
		}
	}
	return out
}
