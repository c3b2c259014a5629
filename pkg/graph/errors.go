package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph building.
var (
	// ErrNoEntryPoint indicates SetEntryPoint was not called before Compile.
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrNodeNotFound indicates an edge or the entry point references an unregistered node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode indicates the same id was registered twice.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrAmbiguousEdges indicates a node has more than one outgoing edge definition.
	ErrAmbiguousEdges = errors.New("node has more than one outgoing edge")

	// ErrNoOutgoingEdge indicates a node that can never hand over control.
	ErrNoOutgoingEdge = errors.New("node has no outgoing edge")

	// ErrUnmappedRouteKey indicates a router can return a key absent from its path map.
	ErrUnmappedRouteKey = errors.New("router key has no target")

	// ErrUnreachableNode indicates a node that no path from the entry point visits.
	ErrUnreachableNode = errors.New("node unreachable from entry point")
)

// ErrRouteNotFound is returned at runtime when a router yields a key it never declared.
var ErrRouteNotFound = errors.New("router returned an undeclared key")

// BuildError collects every problem found while compiling a graph.
type BuildError struct {
	Graph    string
	Problems []error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("graph %q is invalid: %v", e.Graph, errors.Join(e.Problems...))
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *BuildError) Unwrap() []error {
	return e.Problems
}
