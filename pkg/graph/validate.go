package graph

import (
	"fmt"
	"slices"
)

// validate checks the builder's edges and fills g's edge tables.
func (b *Builder) validate(g *Graph) []error {
	var problems []error

	known := func(id string) bool {
		_, ok := b.nodes[id]
		return ok || id == End
	}

	if b.entry == "" {
		problems = append(problems, ErrNoEntryPoint)
	} else if _, ok := b.nodes[b.entry]; !ok {
		problems = append(problems, fmt.Errorf("%w: entry point %s", ErrNodeNotFound, b.entry))
	}

	for _, from := range sortedKeys(b.edges) {
		if _, ok := b.nodes[from]; !ok {
			problems = append(problems, fmt.Errorf("%w: edge source %s", ErrNodeNotFound, from))
			continue
		}
		for _, to := range b.edges[from] {
			if !known(to) {
				problems = append(problems, fmt.Errorf("%w: edge %s -> %s", ErrNodeNotFound, from, to))
			}
		}
	}

	for _, from := range sortedKeys(b.conditionals) {
		if _, ok := b.nodes[from]; !ok {
			problems = append(problems, fmt.Errorf("%w: conditional edge source %s", ErrNodeNotFound, from))
			continue
		}
		for _, c := range b.conditionals[from] {
			if len(c.router.Keys) == 0 {
				problems = append(problems, fmt.Errorf("%w: router on %s declares no keys", ErrUnmappedRouteKey, from))
			}
			for _, key := range c.router.Keys {
				target, ok := c.pathMap[key]
				if !ok {
					problems = append(problems, fmt.Errorf("%w: %s key %q", ErrUnmappedRouteKey, from, key))
					continue
				}
				if !known(target) {
					problems = append(problems, fmt.Errorf("%w: %s key %q -> %s", ErrNodeNotFound, from, key, target))
				}
			}
		}
	}

	for _, id := range b.order {
		outgoing := len(b.edges[id]) + len(b.conditionals[id])
		switch {
		case outgoing == 0:
			problems = append(problems, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, id))
		case outgoing > 1:
			problems = append(problems, fmt.Errorf("%w: %s", ErrAmbiguousEdges, id))
		case len(b.edges[id]) == 1:
			g.static[id] = b.edges[id][0]
		default:
			g.routes[id] = b.conditionals[id][0]
		}
	}

	if len(problems) > 0 {
		return problems
	}

	reached := g.reachable()
	for _, id := range b.order {
		if !reached[id] {
			problems = append(problems, fmt.Errorf("%w: %s", ErrUnreachableNode, id))
		}
	}
	return problems
}

// reachable walks the compiled edges from the entry point.
func (g *Graph) reachable() map[string]bool {
	seen := map[string]bool{}
	stack := []string{g.entry}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == End || seen[id] {
			continue
		}
		seen[id] = true
		stack = append(stack, g.Successors(id)...)
	}
	return seen
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
