package runner

import (
	"errors"
	"fmt"
)

// ErrNotFailed is returned by Retry when the thread has not failed.
var ErrNotFailed = errors.New("thread has not failed")

// ErrAbandoned marks a run whose consumer stopped before the run ended.
var ErrAbandoned = errors.New("run abandoned before completion")

// NodeError wraps an error returned by a node or its resume handler.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError records a panic raised inside a node.
type PanicError struct {
	Node  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.Node, e.Value)
}
