package domain

import "time"

// Interrupt is the payload of a suspension requested by a node.
// It surfaces to the caller as an "awaiting input" response.
type Interrupt struct {
	Node            string    `json:"node"`
	Message         string    `json:"message"`
	Proposal        string    `json:"proposal,omitempty"`
	FeedbackOptions []string  `json:"feedback_options,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Suspend builds an Update that only requests an interrupt.
func Suspend(message, proposal string, options ...string) Update {
	return Update{Interrupt: &Interrupt{
		Message:         message,
		Proposal:        proposal,
		FeedbackOptions: options,
	}}
}
