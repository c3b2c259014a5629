package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFeedback(t *testing.T) {
	tests := []struct {
		text   string
		want   Decision
		status Status
	}{
		{"approve", DecisionApprove, StatusApproved},
		{"Looks good, APPROVED.", DecisionApprove, StatusApproved},
		{"revise: tighten the commercial section", DecisionRevise, StatusNeedsRevision},
		{"I would approve if you revise the pricing", DecisionRevise, StatusNeedsRevision},
		{"not sure yet", DecisionNone, StatusInProgress},
		{"", DecisionNone, StatusInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			fb := ParseFeedback(tt.text)
			assert.Equal(t, tt.want, fb.Decision)
			assert.Equal(t, tt.status, fb.Status())
		})
	}
}

func TestFeedback_Entry(t *testing.T) {
	assert.Equal(t, "revise: tighten", ParseFeedback("revise: tighten").Entry())
	assert.Equal(t, "approve", Feedback{Decision: DecisionApprove}.Entry())
	assert.Equal(t, "shorter intro", Feedback{Decision: DecisionRevise, Comment: "shorter intro"}.Entry())
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision("approve")
	assert.NoError(t, err)
	assert.Equal(t, DecisionApprove, d)

	d, err = ParseDecision(" Revise ")
	assert.NoError(t, err)
	assert.Equal(t, DecisionRevise, d)

	_, err = ParseDecision("maybe")
	assert.Error(t, err)
}
