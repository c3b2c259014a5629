package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/rfqflow/pkg/ports"
)

// DefaultK is the number of passages returned when the request does not set K.
const DefaultK = 2

// Separator joins retrieved passages.
const Separator = "\n---\n"

// Retriever implements ports.Retriever with BM25 over a DocumentRepository.
//
// Mode documents searches ingested tenant documents; mode examples searches stored
// proposals, preferring winning ones when any exist.
type Retriever struct {
	repo ports.DocumentRepository
}

// New creates a retriever over repo.
func New(repo ports.DocumentRepository) *Retriever {
	return &Retriever{repo: repo}
}

// Query implements ports.Retriever.
func (r *Retriever) Query(ctx context.Context, req ports.RetrievalRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("retrieval: empty prompt")
	}
	k := req.K
	if k <= 0 {
		k = DefaultK
	}

	corpus, err := r.corpus(ctx, req)
	if err != nil {
		return "", err
	}
	if len(corpus) == 0 {
		return "", nil
	}

	hits := NewIndex(corpus).Top(req.Prompt, k)
	passages := make([]string, 0, len(hits))
	for _, h := range hits {
		passages = append(passages, corpus[h.Index])
	}
	return strings.Join(passages, Separator), nil
}

func (r *Retriever) corpus(ctx context.Context, req ports.RetrievalRequest) ([]string, error) {
	switch req.Mode {
	case ports.ModeExamples:
		proposals, err := r.repo.Proposals(ctx, req.Tenant, true)
		if err != nil {
			return nil, fmt.Errorf("retrieval: load winning proposals: %w", err)
		}
		if len(proposals) == 0 {
			if proposals, err = r.repo.Proposals(ctx, req.Tenant, false); err != nil {
				return nil, fmt.Errorf("retrieval: load proposals: %w", err)
			}
		}
		out := make([]string, 0, len(proposals))
		for _, p := range proposals {
			out = append(out, p.Content)
		}
		return out, nil
	case ports.ModeDocuments, "":
		docs, err := r.repo.Documents(ctx, req.Tenant)
		if err != nil {
			return nil, fmt.Errorf("retrieval: load documents: %w", err)
		}
		out := make([]string, 0, len(docs))
		for _, d := range docs {
			out = append(out, d.Content)
		}
		return out, nil
	}
	return nil, fmt.Errorf("retrieval: unknown mode %q", req.Mode)
}
