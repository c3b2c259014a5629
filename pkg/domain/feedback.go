package domain

import (
	"fmt"
	"strings"
)

// Decision is the reviewer's verdict on a draft.
type Decision string

const (
	DecisionNone    Decision = ""
	DecisionApprove Decision = "APPROVE"
	DecisionRevise  Decision = "REVISE"
)

// ParseDecision accepts "approve"/"revise" in any case. An empty string means no decision.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return DecisionNone, nil
	case string(DecisionApprove):
		return DecisionApprove, nil
	case string(DecisionRevise):
		return DecisionRevise, nil
	}
	return DecisionNone, fmt.Errorf("unknown decision %q", s)
}

// Feedback is the structured reviewer response applied on resume.
type Feedback struct {
	Decision Decision `json:"decision,omitempty"`
	Comment  string   `json:"comment,omitempty"`
}

// ParseFeedback derives a Feedback from free text.
// "revise" takes precedence when both keywords appear, since an ambiguous answer
// should never approve a draft.
func ParseFeedback(text string) Feedback {
	lower := strings.ToLower(text)
	fb := Feedback{Comment: strings.TrimSpace(text)}
	switch {
	case strings.Contains(lower, "revise"):
		fb.Decision = DecisionRevise
	case strings.Contains(lower, "approve"):
		fb.Decision = DecisionApprove
	}
	return fb
}

// Status maps the decision onto the review status.
func (f Feedback) Status() Status {
	switch f.Decision {
	case DecisionApprove:
		return StatusApproved
	case DecisionRevise:
		return StatusNeedsRevision
	}
	return StatusInProgress
}

// Entry is the line appended to the feedback log.
func (f Feedback) Entry() string {
	if f.Comment != "" {
		return f.Comment
	}
	return strings.ToLower(string(f.Decision))
}
