package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/rfqflow/pkg/domain"
)

// End is the terminal sentinel. Edges pointing at End finish the run.
const End = "__end__"

// NodeFunc is one unit of work. It reads the current State and returns a partial Update
// that the executor merges with the domain reducers.
type NodeFunc func(ctx context.Context, s domain.State, cfg Config) (domain.Update, error)

// ResumeFunc translates human feedback into an Update for a node that interrupted.
type ResumeFunc func(ctx context.Context, s domain.State, fb domain.Feedback) (domain.Update, error)

// Config is the immutable per-call configuration handed to every node.
type Config struct {
	ThreadID string
	Tenant   string
	Step     int
	Params   map[string]any
}

// Int returns an integer parameter, or def when absent or not numeric.
func (c Config) Int(key string, def int) int {
	switch v := c.Params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// String returns a string parameter, or def when absent.
func (c Config) String(key, def string) string {
	if v, ok := c.Params[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Duration returns a duration parameter, or def when absent.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	switch v := c.Params[key].(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Node is a registered unit of work.
type Node struct {
	ID          string
	Description string
	Fn          NodeFunc
	Resume      ResumeFunc
	Timeout     time.Duration
}

// NodeOption configures a node at registration.
type NodeOption func(*Node)

// WithTimeout bounds a single execution of the node.
func WithTimeout(d time.Duration) NodeOption {
	return func(n *Node) { n.Timeout = d }
}

// WithResume attaches the handler applied when the thread resumes after this node interrupted.
func WithResume(fn ResumeFunc) NodeOption {
	return func(n *Node) { n.Resume = fn }
}

// WithDescription documents the node for introspection.
func WithDescription(desc string) NodeOption {
	return func(n *Node) { n.Description = desc }
}

// DefaultResume appends the feedback to the log and leaves everything else unchanged.
func DefaultResume(_ context.Context, _ domain.State, fb domain.Feedback) (domain.Update, error) {
	entry := fb.Entry()
	if entry == "" {
		return domain.Update{}, fmt.Errorf("empty feedback")
	}
	return domain.Update{HumanFeedback: []string{entry}}, nil
}
