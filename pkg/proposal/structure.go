package proposal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/rfqflow/pkg/domain"
)

// Request types produced by the structure node.
const (
	TypeFullProposal = "full_proposal"
	TypePartialPlan  = "partial_plan"
	TypeFactualQuery = "factual_query"
)

// DefaultStructure is the company outline used for every full proposal.
func DefaultStructure() domain.ProposalStructure {
	return domain.ProposalStructure{
		Type: TypeFullProposal,
		Sections: []string{
			"Submitted by",
			"Introduction",
			"Understanding of the Assignment",
			"Company Profile and Competencies",
			"Technical Approach",
			"Project Management and Reporting",
			"Commercial",
			"Team Composition",
			"Quality Assurance and Risk Management",
			"Warranty and After-Sales Support",
			"Conclusion",
			"Attachments",
		},
		Subsections: []string{
			"Organizational Capacity",
			"Domain Experience",
			"Specialized Expertise",
			"Work Phases",
			"Project Timeline",
			"Coordination and Communication",
			"Final Deliverables",
			"Detailed Cost Breakdown",
			"Payment Terms",
			"Key Personnel",
			"Local Partnerships",
			"Quality Assurance",
			"Risk Management",
			"Warranty Terms",
			"Support Services",
			"Summary of Proposal",
			"Commitment to Quality",
			"Commitment to Timeliness",
			"Next Steps",
		},
		LotTitles: []string{
			"Phase 1: Feasibility and Site Assessment",
			"Phase 2: System Design and Technical Specifications",
			"Phase 3: Tendering Support",
			"Phase 4: Installation Supervision",
			"Phase 5: Post-Installation Audit and Handover",
		},
		Attachments: true,
	}
}

// decodeJSON parses the first JSON object found in a model reply.
// Markdown code fences and surrounding prose are ignored.
func decodeJSON(reply string, v any) error {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object in reply")
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), v); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

func parseStructure(reply string) (domain.ProposalStructure, error) {
	var st domain.ProposalStructure
	if err := decodeJSON(reply, &st); err != nil {
		return st, err
	}
	switch st.Type {
	case TypeFullProposal:
		return DefaultStructure(), nil
	case TypePartialPlan, TypeFactualQuery:
		return st, nil
	case "":
		st.Type = TypePartialPlan
		return st, nil
	}
	return st, fmt.Errorf("unknown request type %q", st.Type)
}
