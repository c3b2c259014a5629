package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Status drives the human review router. Exactly one value holds at any time.
type Status string

const (
	StatusInProgress    Status = "IN_PROGRESS"
	StatusNeedsRevision Status = "NEEDS_REVISION"
	StatusApproved      Status = "APPROVED"
)

// ParseStatus converts a wire value into a Status.
// The lowercase spellings used by older clients ("in_progress", "revision", "approved") are accepted.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "in_progress":
		return StatusInProgress, nil
	case "needs_revision", "revision":
		return StatusNeedsRevision, nil
	case "approved":
		return StatusApproved, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if s == "" {
		return []byte(StatusInProgress), nil
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ProposalStructure is the outline produced by the structure node.
type ProposalStructure struct {
	Type        string   `json:"type"`
	Sections    []string `json:"sections"`
	Subsections []string `json:"subsections"`
	LotTitles   []string `json:"lot_titles"`
	Attachments bool     `json:"attachments"`
}

// State represents the record flowing through the workflow graph.
type State struct {
	// UserQuery is the driving input. It is set once per run and never changed by nodes.
	UserQuery string `json:"user_query"`

	// ClarifiedQuery is the reviewer's restatement of a vague query.
	ClarifiedQuery string `json:"clarified_query,omitempty"`

	// Candidate is the current draft.
	Candidate *Message `json:"candidate,omitempty"`

	// Examples holds retrieved reference proposals used by the critic.
	Examples string `json:"examples,omitempty"`

	// Grounding holds tenant document context used by the draft node.
	Grounding string `json:"grounding,omitempty"`

	Structure *ProposalStructure `json:"structure,omitempty"`

	// Messages is the conversation log. Append-only, merged by message id.
	Messages []Message `json:"messages"`

	// HumanFeedback records each reviewer response. Append-only.
	HumanFeedback []string `json:"human_feedback"`

	Status Status `json:"status"`

	// Iteration counts revision loops. It is never decreased.
	Iteration int `json:"iteration"`

	// Routing flags, consumed by the router that follows the node which wrote them.
	IntentRoute        string `json:"intent_route,omitempty"`
	ResponseType       string `json:"response_type,omitempty"`
	NeedsClarification bool   `json:"needs_clarification,omitempty"`

	// MissingInputs names required fields a node found absent. Routers send the run back
	// to the producing node while it is non-empty.
	MissingInputs []string `json:"missing_inputs,omitempty"`

	// Answer is the result of the direct answer path.
	Answer string `json:"answer,omitempty"`

	// SessionData is tenant and auth context owned by the HTTP layer. Nodes read it only.
	SessionData map[string]any `json:"session_data,omitempty"`
}

// NewState builds the default state for a fresh run.
func NewState(query string, session map[string]any) State {
	return State{
		UserQuery:     query,
		Messages:      []Message{},
		HumanFeedback: []string{},
		Status:        StatusInProgress,
		SessionData:   maps.Clone(session),
	}
}

// EffectiveQuery returns the clarified query when the reviewer supplied one.
func (s State) EffectiveQuery() string {
	if s.ClarifiedQuery != "" {
		return s.ClarifiedQuery
	}
	return s.UserQuery
}

// LastFeedback returns the most recent reviewer response, if any.
func (s State) LastFeedback() string {
	if len(s.HumanFeedback) == 0 {
		return ""
	}
	return s.HumanFeedback[len(s.HumanFeedback)-1]
}

// Proposal returns the text of the current draft.
func (s State) Proposal() string {
	if s.Candidate == nil {
		return ""
	}
	return s.Candidate.Content
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	if s.Candidate != nil {
		c := *s.Candidate
		out.Candidate = &c
	}
	if s.Structure != nil {
		st := *s.Structure
		st.Sections = slices.Clone(s.Structure.Sections)
		st.Subsections = slices.Clone(s.Structure.Subsections)
		st.LotTitles = slices.Clone(s.Structure.LotTitles)
		out.Structure = &st
	}
	out.Messages = slices.Clone(s.Messages)
	out.HumanFeedback = slices.Clone(s.HumanFeedback)
	out.MissingInputs = slices.Clone(s.MissingInputs)
	out.SessionData = cloneMap(s.SessionData)
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// Ptr returns a pointer to v. It keeps Update literals short.
func Ptr[T any](v T) *T {
	return &v
}
