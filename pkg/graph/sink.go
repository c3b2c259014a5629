package graph

import "context"

// TokenSink receives partial output emitted by a node while it runs.
type TokenSink func(ctx context.Context, node, chunk string)

type sinkKey struct{}

type sinkBinding struct {
	node string
	fn   TokenSink
}

// WithTokenSink returns a context through which the named node can publish partial output.
func WithTokenSink(ctx context.Context, node string, fn TokenSink) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, sinkKey{}, sinkBinding{node: node, fn: fn})
}

// Publish forwards a chunk to the sink installed by the executor, if any.
func Publish(ctx context.Context, chunk string) {
	if b, ok := ctx.Value(sinkKey{}).(sinkBinding); ok {
		b.fn(ctx, b.node, chunk)
	}
}
