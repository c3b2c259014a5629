package graph

import (
	"fmt"
	"maps"
)

type conditional struct {
	router  Router
	pathMap map[string]string
}

// Builder assembles nodes and edges into a Graph.
// Methods chain; problems are collected and reported together by Compile.
type Builder struct {
	name         string
	nodes        map[string]*Node
	order        []string
	edges        map[string][]string
	conditionals map[string][]conditional
	entry        string
	problems     []error
}

// NewBuilder creates a builder for a named graph.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:         name,
		nodes:        make(map[string]*Node),
		edges:        make(map[string][]string),
		conditionals: make(map[string][]conditional),
	}
}

// AddNode registers a node.
func (b *Builder) AddNode(id string, fn NodeFunc, opts ...NodeOption) *Builder {
	if id == "" || id == End {
		b.problems = append(b.problems, fmt.Errorf("invalid node id %q", id))
		return b
	}
	if _, exists := b.nodes[id]; exists {
		b.problems = append(b.problems, fmt.Errorf("%w: %s", ErrDuplicateNode, id))
		return b
	}
	if fn == nil {
		b.problems = append(b.problems, fmt.Errorf("node %s has no function", id))
		return b
	}
	n := &Node{ID: id, Fn: fn}
	for _, opt := range opts {
		opt(n)
	}
	b.nodes[id] = n
	b.order = append(b.order, id)
	return b
}

// AddEdge registers an unconditional transition from one node to another (or to End).
func (b *Builder) AddEdge(from, to string) *Builder {
	b.edges[from] = append(b.edges[from], to)
	return b
}

// AddConditionalEdges routes from a node through a router; pathMap maps each router key to a target.
func (b *Builder) AddConditionalEdges(from string, router Router, pathMap map[string]string) *Builder {
	if router.Fn == nil {
		b.problems = append(b.problems, fmt.Errorf("conditional edge from %s has no router function", from))
		return b
	}
	b.conditionals[from] = append(b.conditionals[from], conditional{
		router:  router,
		pathMap: maps.Clone(pathMap),
	})
	return b
}

// SetEntryPoint designates the first node of every run.
func (b *Builder) SetEntryPoint(id string) *Builder {
	b.entry = id
	return b
}

// Compile validates the definition and returns an immutable Graph.
func (b *Builder) Compile() (*Graph, error) {
	g := &Graph{
		name:   b.name,
		entry:  b.entry,
		nodes:  make(map[string]*Node, len(b.nodes)),
		order:  append([]string(nil), b.order...),
		static: make(map[string]string),
		routes: make(map[string]conditional),
	}
	for id, n := range b.nodes {
		cp := *n
		g.nodes[id] = &cp
	}

	problems := append([]error(nil), b.problems...)
	problems = append(problems, b.validate(g)...)
	if len(problems) > 0 {
		return nil, &BuildError{Graph: b.name, Problems: problems}
	}
	return g, nil
}

// MustCompile is like Compile but panics on an invalid definition.
func (b *Builder) MustCompile() *Graph {
	g, err := b.Compile()
	if err != nil {
		panic(err)
	}
	return g
}
