package domain

import "slices"

// Update is the partial output of a node.
//
// Pointer fields overwrite the matching State field when non-nil. HumanFeedback appends.
// Messages merge by id. IterationInc increments Iteration and must not be negative.
// A non-nil Interrupt asks the executor to suspend the thread after merging the rest.
//
// UserQuery and SessionData have no counterpart here: nodes cannot change them.
type Update struct {
	ClarifiedQuery     *string
	Candidate          *Message
	Examples           *string
	Grounding          *string
	Structure          *ProposalStructure
	Messages           []Message
	HumanFeedback      []string
	Status             *Status
	IterationInc       int
	IntentRoute        *string
	ResponseType       *string
	NeedsClarification *bool
	MissingInputs      *[]string
	Answer             *string

	Interrupt *Interrupt
}

// Apply merges u into a copy of s and returns the result. s is left untouched.
func (s State) Apply(u Update) (State, error) {
	if u.IterationInc < 0 {
		return s, ErrNegativeIteration
	}

	out := s.Clone()
	if u.ClarifiedQuery != nil {
		out.ClarifiedQuery = *u.ClarifiedQuery
	}
	if u.Candidate != nil {
		c := *u.Candidate
		out.Candidate = &c
	}
	if u.Examples != nil {
		out.Examples = *u.Examples
	}
	if u.Grounding != nil {
		out.Grounding = *u.Grounding
	}
	if u.Structure != nil {
		st := *u.Structure
		out.Structure = &st
	}
	if u.Status != nil {
		out.Status = *u.Status
	}
	if u.IntentRoute != nil {
		out.IntentRoute = *u.IntentRoute
	}
	if u.ResponseType != nil {
		out.ResponseType = *u.ResponseType
	}
	if u.NeedsClarification != nil {
		out.NeedsClarification = *u.NeedsClarification
	}
	if u.MissingInputs != nil {
		if len(*u.MissingInputs) == 0 {
			out.MissingInputs = nil
		} else {
			out.MissingInputs = slices.Clone(*u.MissingInputs)
		}
	}
	if u.Answer != nil {
		out.Answer = *u.Answer
	}

	out.Iteration += u.IterationInc
	if len(u.HumanFeedback) > 0 {
		out.HumanFeedback = append(out.HumanFeedback, u.HumanFeedback...)
	}
	out.Messages = mergeMessages(out.Messages, u.Messages)

	return out, nil
}

// Missing reports a soft failure: the named inputs were absent, nothing else changes.
func Missing(fields ...string) Update {
	return Update{MissingInputs: &fields}
}
