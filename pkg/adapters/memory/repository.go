package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/rfqflow/pkg/domain"
)

type tenantData struct {
	documents map[string]domain.Document
	rfqs      []domain.RFQ
	proposals []domain.Proposal
}

// Repository implements ports.DocumentRepository in memory, one partition per tenant.
type Repository struct {
	mu      sync.RWMutex
	tenants map[string]*tenantData
	nextID  int64
	now     func() time.Time
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		tenants: make(map[string]*tenantData),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *Repository) tenant(name string) *tenantData {
	t, ok := r.tenants[name]
	if !ok {
		t = &tenantData{documents: make(map[string]domain.Document)}
		r.tenants[name] = t
	}
	return t
}

func (r *Repository) id() int64 {
	r.nextID++
	return r.nextID
}

// SaveDocument stores or replaces a document by name.
func (r *Repository) SaveDocument(ctx context.Context, tenant string, doc domain.Document) (domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = r.now()
	}
	r.tenant(tenant).documents[doc.Name] = doc
	return doc, nil
}

// Documents returns the tenant's documents ordered by name.
func (r *Repository) Documents(ctx context.Context, tenant string) ([]domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[tenant]
	if !ok {
		return nil, nil
	}
	out := make([]domain.Document, 0, len(t.documents))
	for _, d := range t.documents {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveRFQ stores RFQ metadata and assigns an id. Metadata for a document name already
// stored replaces it, keeping its id and creation time.
func (r *Repository) SaveRFQ(ctx context.Context, tenant string, rfq domain.RFQ) (domain.RFQ, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rfq.PromptSuggestions = slices.Clone(rfq.PromptSuggestions)
	t := r.tenant(tenant)
	if rfq.DocumentName != "" {
		for i, old := range t.rfqs {
			if old.DocumentName == rfq.DocumentName {
				rfq.ID, rfq.CreatedAt = old.ID, old.CreatedAt
				t.rfqs[i] = rfq
				return rfq, nil
			}
		}
	}
	rfq.ID = r.id()
	if rfq.CreatedAt.IsZero() {
		rfq.CreatedAt = r.now()
	}
	t.rfqs = append(t.rfqs, rfq)
	return rfq, nil
}

// GetRFQ returns one RFQ or domain.ErrRecordNotFound.
func (r *Repository) GetRFQ(ctx context.Context, tenant string, id int64) (domain.RFQ, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.tenants[tenant]; ok {
		for _, rfq := range t.rfqs {
			if rfq.ID == id {
				return rfq, nil
			}
		}
	}
	return domain.RFQ{}, domain.ErrRecordNotFound
}

// RecentRFQs returns the newest RFQs first.
func (r *Repository) RecentRFQs(ctx context.Context, tenant string, limit int) ([]domain.RFQ, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[tenant]
	if !ok {
		return nil, nil
	}
	out := slices.Clone(t.rfqs)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SaveProposal stores a proposal and assigns an id. A proposal exported from a thread that
// already has one replaces it, keeping its id and creation time.
func (r *Repository) SaveProposal(ctx context.Context, tenant string, p domain.Proposal) (domain.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tenant(tenant)
	if p.ThreadID != "" {
		for i, old := range t.proposals {
			if old.ThreadID == p.ThreadID {
				p.ID, p.CreatedAt = old.ID, old.CreatedAt
				t.proposals[i] = p
				return p, nil
			}
		}
	}
	p.ID = r.id()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	t.proposals = append(t.proposals, p)
	return p, nil
}

// Proposals returns the tenant's proposals, newest first.
func (r *Repository) Proposals(ctx context.Context, tenant string, winningOnly bool) ([]domain.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[tenant]
	if !ok {
		return nil, nil
	}
	var out []domain.Proposal
	for i := len(t.proposals) - 1; i >= 0; i-- {
		if winningOnly && !t.proposals[i].IsWinning {
			continue
		}
		out = append(out, t.proposals[i])
	}
	return out, nil
}

// RecentActivity merges RFQs and proposals into one feed, newest first.
func (r *Repository) RecentActivity(ctx context.Context, tenant string, limit int) ([]domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[tenant]
	if !ok {
		return nil, nil
	}
	var out []domain.Activity
	for _, rfq := range t.rfqs {
		out = append(out, domain.Activity{Kind: "rfq", Title: rfq.Title, RefID: rfq.ID, CreatedAt: rfq.CreatedAt})
	}
	for _, p := range t.proposals {
		out = append(out, domain.Activity{Kind: "proposal", Title: p.Title, RefID: p.ID, CreatedAt: p.CreatedAt})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].RefID > out[j].RefID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
