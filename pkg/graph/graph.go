package graph

import (
	"fmt"

	"github.com/aretw0/rfqflow/pkg/domain"
)

// Graph is a compiled, immutable workflow definition.
// It holds no per-run state and is safe to share between concurrent runs.
type Graph struct {
	name   string
	entry  string
	nodes  map[string]*Node
	order  []string
	static map[string]string
	routes map[string]conditional
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Entry returns the entry node id.
func (g *Graph) Entry() string { return g.entry }

// Node returns a registered node.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns node ids in registration order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.order...)
}

// Next resolves the successor of a node for the given state.
func (g *Graph) Next(from string, s domain.State) (string, error) {
	if to, ok := g.static[from]; ok {
		return to, nil
	}
	c, ok := g.routes[from]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNodeNotFound, from)
	}
	key, declared := c.router.Route(s)
	if !declared {
		return "", fmt.Errorf("%w: %s returned %q", ErrRouteNotFound, from, key)
	}
	return c.pathMap[key], nil
}

// Successors lists every possible next hop of a node, End included.
func (g *Graph) Successors(from string) []string {
	if to, ok := g.static[from]; ok {
		return []string{to}
	}
	c, ok := g.routes[from]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c.router.Keys))
	for _, key := range c.router.Keys {
		out = append(out, c.pathMap[key])
	}
	return out
}

// Edge describes one transition for introspection.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// Edges lists all transitions in node registration order.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, id := range g.order {
		if to, ok := g.static[id]; ok {
			out = append(out, Edge{From: id, To: to})
			continue
		}
		c := g.routes[id]
		for _, key := range c.router.Keys {
			out = append(out, Edge{From: id, To: c.pathMap[key], Label: key})
		}
	}
	return out
}
