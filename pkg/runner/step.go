package runner

import (
	"fmt"
	"iter"

	"github.com/aretw0/rfqflow/pkg/domain"
)

// Kind tells the variants of Step apart.
type Kind int

const (
	// Continue reports a completed node; more steps follow.
	Continue Kind = iota
	// Suspended reports that the run is waiting for human input. It is the last step.
	Suspended
	// Done reports that the graph reached its end. It is the last step.
	Done
	// Failed reports an error. It is the last step.
	Failed
)

func (k Kind) String() string {
	switch k {
	case Continue:
		return "continue"
	case Suspended:
		return "suspended"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Step is one element of a run.
type Step struct {
	Kind  Kind `json:"kind"`
	Index int  `json:"index"`

	// Node is the node that produced the step. Empty on Done.
	Node  string           `json:"node,omitempty"`
	Delta domain.StateDiff `json:"delta"`

	// State is the full state after the step.
	State domain.State `json:"state"`

	Interrupt *domain.Interrupt `json:"interrupt,omitempty"`
	Err       error             `json:"-"`
}

// Terminal reports whether no step follows this one.
func (s Step) Terminal() bool {
	return s.Kind != Continue
}

// Collect drains a run and returns its last step along with every step.
func Collect(seq iter.Seq[Step]) (Step, []Step) {
	var all []Step
	for s := range seq {
		all = append(all, s)
	}
	if len(all) == 0 {
		return Step{Kind: Failed, Err: fmt.Errorf("run produced no steps")}, nil
	}
	return all[len(all)-1], all
}
