package proposal

import (
	"fmt"
	"strings"

	"github.com/aretw0/rfqflow/pkg/domain"
)

const intentPrompt = `You are an intent classification agent for a proposal writing assistant.
Route the user query to one of two pipelines:
- rag: anything involving RFQs, proposals, tenders, uploaded documents, technical steps, warranties, lots or the organisation's experience.
- direct: greetings, general knowledge, or questions about the assistant itself.

Never answer direct when the query mentions an RFQ, a proposal, a document or a lot.

Respond with exactly one word: rag or direct.`

const understandingPrompt = `You review user requests before a proposal is drafted.
Decide whether the request is specific enough to act on.

Return a JSON object:
{"needs_clarification": true|false, "message": "<a short acknowledgement, or a polite clarification question with 3 clearer rewordings of the query>"}`

const directPrompt = `You are a professional assistant for a technical consultancy.
Answer the user's question concisely and politely. If the question needs company documents, say so.`

const structurePrompt = `You are a technical proposal structuring agent. Based on the user query, determine:
- the request type: full_proposal, partial_plan or factual_query
- the section titles and subsections of the proposal, if applicable
- any LOT (work phase) titles
- whether attachments are required

Only use information implied by the query or explicitly stated. Never guess details.

Return a JSON object:
{"type": "<full_proposal|partial_plan|factual_query>", "sections": ["..."], "subsections": ["..."], "lot_titles": ["..."], "attachments": true|false}`

const draftPrompt = `You are an expert proposal writer responding to requests for quotation.
Write a complete, professional proposal in Markdown. Start with a level one heading holding the proposal title.
Follow the requested structure, rely on the reference material for facts, and never invent figures that are not given.`

const critiquePrompt = `You are an expert in reviewing proposals. You have two documents to analyze:

1. Generated Proposal: the draft produced by the system.
2. Retrieved Proposals: existing proposals showing the expected format, structure and content.

Compare them. Identify missing or underdeveloped sections, inconsistencies and weak language,
then return only the revised Generated Proposal in the same Markdown format, with the improvements applied.`

const metadataPrompt = `You extract metadata from tender documents.
Read the document and return the following fields. Do not guess: use null for any field the text does not state.

Return a JSON object:
{"organization_name": "...", "title": "...", "reference_no": "...", "submission_deadline": "YYYY-MM-DD", "country_or_region": "...", "contact_email": "..."}`

const suggestionsPrompt = `You generate insightful prompt suggestions based on RFQ documents.
Read the RFQ content and write exactly 4 advanced, domain-relevant questions someone might ask when preparing a
technical or proposal response. Keep each question under 15 words.

Return a JSON object:
{"prompts": ["...", "...", "...", "..."]}`

// ReviewMessage is shown to the reviewer when the workflow waits for feedback.
const ReviewMessage = "Please review the draft and provide your feedback."

// ReviewOptions lists the answers a reviewer may give.
var ReviewOptions = []string{
	"approve - if the proposal is satisfactory",
	"revise - if changes are needed (please specify what to improve)",
}

const clarifyFallback = "Could you clarify your request? Mention the RFQ, the lots concerned and the kind of answer you expect."

func draftUserPrompt(s domain.State, memories []domain.MemoryItem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Request:\n%s\n", s.EffectiveQuery())

	if st := s.Structure; st != nil {
		sb.WriteString("\nStructure:\n")
		for _, sec := range st.Sections {
			fmt.Fprintf(&sb, "- %s\n", sec)
		}
		if len(st.Subsections) > 0 {
			fmt.Fprintf(&sb, "Subsections: %s\n", strings.Join(st.Subsections, ", "))
		}
		if len(st.LotTitles) > 0 {
			fmt.Fprintf(&sb, "Lots: %s\n", strings.Join(st.LotTitles, ", "))
		}
		if st.Attachments {
			sb.WriteString("List the required attachments at the end.\n")
		}
	}

	if s.Grounding != "" {
		fmt.Fprintf(&sb, "\nReference material:\n%s\n", s.Grounding)
	}

	if len(memories) > 0 {
		sb.WriteString("\nWhat we know about this client:\n")
		for _, m := range memories {
			fmt.Fprintf(&sb, "- %v\n", m.Value["content"])
		}
	}

	if s.Candidate != nil && s.Status == domain.StatusNeedsRevision {
		fmt.Fprintf(&sb, "\nPrevious draft:\n%s\n", s.Candidate.Content)
	}
	if fb := s.LastFeedback(); fb != "" && s.Status == domain.StatusNeedsRevision {
		fmt.Fprintf(&sb, "\nReviewer feedback to address:\n%s\n", fb)
	}
	return sb.String()
}

func critiqueUserPrompt(candidate, examples string) string {
	return fmt.Sprintf("Generated Proposal:\n%s\n\nRetrieved Proposals:\n%s", candidate, examples)
}
