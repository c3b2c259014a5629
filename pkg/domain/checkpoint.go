package domain

import (
	"slices"
	"time"
)

// RunStatus describes where a thread stands between calls.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSuspended RunStatus = "suspended"
	RunDone      RunStatus = "done"
	RunFailed    RunStatus = "failed"
)

// Checkpoint is the durable snapshot of a thread taken at a node boundary.
type Checkpoint struct {
	ThreadID string `json:"thread_id"`
	State    State  `json:"state"`

	// Next is the node to execute when the run continues. Empty once the run is done.
	Next string `json:"next,omitempty"`

	// Pending is set while the thread waits for human input.
	Pending *Interrupt `json:"pending,omitempty"`

	RunStatus RunStatus `json:"run_status"`
	Step      int       `json:"step"`
	Version   int       `json:"version"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`

	// Sealed carries the encrypted form of State, Next and Pending when an
	// encryption middleware is installed.
	Sealed []byte `json:"sealed,omitempty"`
}

// Clone returns a deep copy of the checkpoint.
func (c *Checkpoint) Clone() *Checkpoint {
	if c == nil {
		return nil
	}
	out := *c
	out.State = c.State.Clone()
	if c.Pending != nil {
		p := *c.Pending
		p.FeedbackOptions = slices.Clone(c.Pending.FeedbackOptions)
		out.Pending = &p
	}
	if c.Sealed != nil {
		out.Sealed = slices.Clone(c.Sealed)
	}
	return &out
}
