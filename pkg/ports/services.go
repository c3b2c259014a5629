package ports

import (
	"context"

	"github.com/aretw0/rfqflow/pkg/domain"
)

// ModelConfig selects and tunes the model for one call.
type ModelConfig struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	// JSON asks the model for a JSON object response.
	JSON bool
}

// Chunk is one piece of a streamed completion. A non-nil Err ends the stream.
type Chunk struct {
	Text string
	Err  error
}

// LLM is the chat completion service consumed by nodes.
type LLM interface {
	Complete(ctx context.Context, messages []domain.Message, cfg ModelConfig) (domain.Message, error)
	// Stream delivers the completion incrementally. The channel is closed when done.
	Stream(ctx context.Context, messages []domain.Message, cfg ModelConfig) (<-chan Chunk, error)
}

// Retrieval modes understood by Retriever implementations.
const (
	ModeDocuments = "documents"
	ModeExamples  = "examples"
)

// RetrievalRequest describes a retrieval-augmented lookup.
type RetrievalRequest struct {
	Tenant string
	Prompt string
	Mode   string
	K      int
}

// Retriever answers a prompt with text drawn from tenant content.
type Retriever interface {
	Query(ctx context.Context, req RetrievalRequest) (string, error)
}

// MemoryStore is the long-term memory shared across threads of a tenant.
type MemoryStore interface {
	Upsert(ctx context.Context, namespace []string, key string, value map[string]any) error
	// Search returns at most limit items ranked by decreasing score.
	Search(ctx context.Context, namespace []string, query string, limit int) ([]domain.MemoryItem, error)
}

// DocumentRepository is the per-tenant relational store of ingested content.
type DocumentRepository interface {
	SaveDocument(ctx context.Context, tenant string, doc domain.Document) (domain.Document, error)
	Documents(ctx context.Context, tenant string) ([]domain.Document, error)

	SaveRFQ(ctx context.Context, tenant string, rfq domain.RFQ) (domain.RFQ, error)
	GetRFQ(ctx context.Context, tenant string, id int64) (domain.RFQ, error)
	RecentRFQs(ctx context.Context, tenant string, limit int) ([]domain.RFQ, error)

	SaveProposal(ctx context.Context, tenant string, p domain.Proposal) (domain.Proposal, error)
	Proposals(ctx context.Context, tenant string, winningOnly bool) ([]domain.Proposal, error)

	RecentActivity(ctx context.Context, tenant string, limit int) ([]domain.Activity, error)
}

// Exporter is the document workspace approved proposals are published to.
type Exporter interface {
	// EnsureFolder returns the id of the named folder under parentID, creating it if needed.
	// An empty parentID means the workspace root.
	EnsureFolder(ctx context.Context, parentID, name string) (string, error)
	CopyTemplate(ctx context.Context, templateID, name, folderID string) (string, error)
	ReplacePlaceholders(ctx context.Context, docID string, replacements map[string]string) error
	ViewLink(ctx context.Context, docID string) (string, error)
}
