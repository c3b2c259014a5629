// Package middleware decorates a ports.Checkpointer with cross-cutting persistence behavior.
package middleware

import "github.com/aretw0/rfqflow/pkg/ports"

// Middleware allows wrapping a Checkpointer to add behavior.
type Middleware func(ports.Checkpointer) ports.Checkpointer

// Chain applies middlewares so that the first one is the outermost.
func Chain(store ports.Checkpointer, mws ...Middleware) ports.Checkpointer {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
