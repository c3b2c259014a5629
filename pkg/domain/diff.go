package domain

import (
	"reflect"
	"slices"
)

// StateDiff represents the changes a single node made to the State.
// It is serialized to JSON for the per-node stream consumed by clients.
type StateDiff struct {
	ClarifiedQuery     *string            `json:"clarified_query,omitempty"`
	Candidate          *Message           `json:"candidate,omitempty"`
	Examples           *string            `json:"examples,omitempty"`
	Grounding          *string            `json:"grounding,omitempty"`
	Structure          *ProposalStructure `json:"structure,omitempty"`
	Status             *Status            `json:"status,omitempty"`
	Iteration          *int               `json:"iteration,omitempty"`
	IntentRoute        *string            `json:"intent_route,omitempty"`
	ResponseType       *string            `json:"response_type,omitempty"`
	NeedsClarification *bool              `json:"needs_clarification,omitempty"`
	MissingInputs      *[]string          `json:"missing_inputs,omitempty"`
	Answer             *string            `json:"answer,omitempty"`

	// Messages holds messages that were appended or replaced.
	Messages []Message `json:"messages,omitempty"`

	// HumanFeedback holds entries appended to the feedback log.
	HumanFeedback []string `json:"human_feedback,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// When oldState is nil the whole newState is reported (initial load).
func Diff(oldState *State, newState State) StateDiff {
	var old State
	if oldState != nil {
		old = *oldState
	}

	var d StateDiff
	if oldState == nil || old.ClarifiedQuery != newState.ClarifiedQuery {
		d.ClarifiedQuery = nonZero(newState.ClarifiedQuery)
	}
	if !reflect.DeepEqual(old.Candidate, newState.Candidate) && newState.Candidate != nil {
		c := *newState.Candidate
		d.Candidate = &c
	}
	if old.Examples != newState.Examples {
		d.Examples = Ptr(newState.Examples)
	}
	if old.Grounding != newState.Grounding {
		d.Grounding = Ptr(newState.Grounding)
	}
	if !reflect.DeepEqual(old.Structure, newState.Structure) && newState.Structure != nil {
		st := *newState.Structure
		d.Structure = &st
	}
	if oldState == nil || old.Status != newState.Status {
		d.Status = Ptr(newState.Status)
	}
	if oldState == nil || old.Iteration != newState.Iteration {
		d.Iteration = Ptr(newState.Iteration)
	}
	if old.IntentRoute != newState.IntentRoute {
		d.IntentRoute = Ptr(newState.IntentRoute)
	}
	if old.ResponseType != newState.ResponseType {
		d.ResponseType = Ptr(newState.ResponseType)
	}
	if old.NeedsClarification != newState.NeedsClarification {
		d.NeedsClarification = Ptr(newState.NeedsClarification)
	}
	if !slices.Equal(old.MissingInputs, newState.MissingInputs) {
		missing := slices.Clone(newState.MissingInputs)
		if missing == nil {
			missing = []string{}
		}
		d.MissingInputs = &missing
	}
	if old.Answer != newState.Answer {
		d.Answer = Ptr(newState.Answer)
	}

	d.Messages = diffMessages(old.Messages, newState.Messages)
	if n := len(old.HumanFeedback); len(newState.HumanFeedback) > n {
		d.HumanFeedback = slices.Clone(newState.HumanFeedback[n:])
	}
	return d
}

// diffMessages reports appended messages and in-place replacements.
func diffMessages(old, new []Message) []Message {
	var out []Message
	for i, m := range new {
		if i < len(old) && old[i] == m {
			continue
		}
		out = append(out, m)
	}
	return out
}

func nonZero(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IsEmpty checks if the diff contains any change.
func (d StateDiff) IsEmpty() bool {
	return d.ClarifiedQuery == nil &&
		d.Candidate == nil &&
		d.Examples == nil &&
		d.Grounding == nil &&
		d.Structure == nil &&
		d.Status == nil &&
		d.Iteration == nil &&
		d.IntentRoute == nil &&
		d.ResponseType == nil &&
		d.NeedsClarification == nil &&
		d.MissingInputs == nil &&
		d.Answer == nil &&
		len(d.Messages) == 0 &&
		len(d.HumanFeedback) == 0
}
