package domain

import "errors"

// ErrThreadNotFound is returned when a thread id has no checkpoint in the store.
var ErrThreadNotFound = errors.New("thread not found")

// ErrNotSuspended is returned when resuming a thread that is not waiting for input.
var ErrNotSuspended = errors.New("thread is not suspended")

// ErrThreadSuspended is returned when starting a new run on a thread that awaits input.
var ErrThreadSuspended = errors.New("thread is suspended awaiting input")

// ErrNegativeIteration is returned by State.Apply when an update tries to lower Iteration.
var ErrNegativeIteration = errors.New("iteration can only be incremented")

// ErrRevisionLimit is returned when a reviewer asks for more revisions than allowed.
var ErrRevisionLimit = errors.New("revision limit reached")

// ErrRecursionLimit is returned when a run exceeds its step budget.
var ErrRecursionLimit = errors.New("graph did not converge")

// ErrNodeTimeout is returned when a node exceeds its deadline.
var ErrNodeTimeout = errors.New("node timed out")

// ErrThreadOwned is returned when a run is started on a thread that belongs to another tenant.
var ErrThreadOwned = errors.New("thread belongs to another tenant")
