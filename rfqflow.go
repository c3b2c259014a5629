package rfqflow

import (
	"github.com/aretw0/rfqflow/pkg/ports"
	"github.com/aretw0/rfqflow/pkg/proposal"
	"github.com/aretw0/rfqflow/pkg/runner"
)

// Version is stamped at build time with -ldflags "-X github.com/aretw0/rfqflow.Version=...".
var Version = "dev"

// Engine runs proposal threads.
type Engine = runner.Runner

// New compiles the proposal workflow from deps and returns an engine persisting to store.
func New(deps proposal.Deps, store ports.Checkpointer, opts ...runner.Option) (*Engine, error) {
	g, err := proposal.NewGraph(deps)
	if err != nil {
		return nil, err
	}
	if deps.Logger != nil {
		opts = append([]runner.Option{runner.WithLogger(deps.Logger)}, opts...)
	}
	return runner.New(g, store, opts...), nil
}
