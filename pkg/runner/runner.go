package runner

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/aretw0/rfqflow/internal/logging"
	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/graph"
	"github.com/aretw0/rfqflow/pkg/ports"
	"github.com/aretw0/rfqflow/pkg/session"
)

// DefaultRecursionLimit is the number of node executions allowed in one run.
const DefaultRecursionLimit = 25

// Runner executes a compiled graph. It is safe for concurrent use across threads.
type Runner struct {
	graph    *graph.Graph
	sessions *session.Manager

	logger      *slog.Logger
	limit       int
	nodeTimeout time.Duration
	hooks       domain.LifecycleHooks
	sink        graph.TokenSink
	params      map[string]any
	now         func() time.Time

	locker  ports.DistributedLocker
	lockTTL time.Duration
}

// Option configures the Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRecursionLimit sets the number of node executions allowed per run.
func WithRecursionLimit(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.limit = n
		}
	}
}

// WithNodeTimeout sets the default deadline of nodes that do not declare their own.
func WithNodeTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.nodeTimeout = d
	}
}

// WithLifecycleHooks registers observability callbacks. Repeated calls accumulate.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(r *Runner) {
		r.hooks = r.hooks.Merge(h)
	}
}

// WithLocker serializes threads across replicas in addition to the in-process lock.
func WithLocker(l ports.DistributedLocker) Option {
	return func(r *Runner) {
		r.locker = l
	}
}

// WithLockTTL sets the expiry of distributed thread locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(r *Runner) {
		r.lockTTL = ttl
	}
}

// WithTokenSink receives partial output from every run. See also ContextWithSink.
func WithTokenSink(fn graph.TokenSink) Option {
	return func(r *Runner) {
		r.sink = fn
	}
}

// WithParams sets the parameters exposed to nodes through graph.Config.
func WithParams(params map[string]any) Option {
	return func(r *Runner) {
		r.params = maps.Clone(params)
	}
}

// New creates a runner for g persisting to store.
func New(g *graph.Graph, store ports.Checkpointer, opts ...Option) *Runner {
	r := &Runner{
		graph:  g,
		logger: logging.NewNop(),
		limit:  DefaultRecursionLimit,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	var sopts []session.Option
	sopts = append(sopts, session.WithLogger(r.logger))
	if r.locker != nil {
		sopts = append(sopts, session.WithLocker(r.locker), session.WithLockTTL(r.lockTTL))
	}
	r.sessions = session.NewManager(store, sopts...)
	return r
}

// Graph returns the graph the runner executes.
func (r *Runner) Graph() *graph.Graph { return r.graph }

// Get returns the latest checkpoint of a thread.
func (r *Runner) Get(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	return r.sessions.Load(ctx, threadID)
}

// Delete removes a thread, waiting for any run in progress on it.
func (r *Runner) Delete(ctx context.Context, threadID string) error {
	return r.sessions.Delete(ctx, threadID)
}

// List returns the known thread ids.
func (r *Runner) List(ctx context.Context) ([]string, error) {
	return r.sessions.List(ctx)
}

// History returns every saved version of a thread when the store keeps them.
func (r *Runner) History(ctx context.Context, threadID string) ([]*domain.Checkpoint, bool, error) {
	h, ok := r.sessions.Store().(ports.HistoryReader)
	if !ok {
		return nil, false, nil
	}
	versions, err := h.History(ctx, threadID)
	return versions, true, err
}

type ctxSinkKey struct{}

// ContextWithSink attaches a token sink to a single run.
func ContextWithSink(ctx context.Context, fn graph.TokenSink) context.Context {
	return context.WithValue(ctx, ctxSinkKey{}, fn)
}

func (r *Runner) sinkFor(ctx context.Context) graph.TokenSink {
	callSink, _ := ctx.Value(ctxSinkKey{}).(graph.TokenSink)
	switch {
	case callSink == nil:
		return r.sink
	case r.sink == nil:
		return callSink
	}
	return func(ctx context.Context, node, chunk string) {
		r.sink(ctx, node, chunk)
		callSink(ctx, node, chunk)
	}
}

// detachable wraps sink so that it drops every chunk once detach returns. A node that
// outlives its deadline keeps running, but its output no longer reaches the caller.
func detachable(sink graph.TokenSink) (graph.TokenSink, func()) {
	if sink == nil {
		return nil, func() {}
	}
	var (
		mu       sync.RWMutex
		detached bool
	)
	wrapped := func(ctx context.Context, node, chunk string) {
		mu.RLock()
		defer mu.RUnlock()
		if !detached {
			sink(ctx, node, chunk)
		}
	}
	return wrapped, func() {
		mu.Lock()
		detached = true
		mu.Unlock()
	}
}
