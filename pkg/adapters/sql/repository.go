package sql

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/retrieval"
)

// Repository implements ports.DocumentRepository. Every query is scoped by tenant.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository creates a repository. Migrate must have run on db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// SaveDocument stores or replaces a document by name.
func (r *Repository) SaveDocument(ctx context.Context, tenant string, doc domain.Document) (domain.Document, error) {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = r.now()
	}
	row := documentRow{Tenant: tenant, Name: doc.Name, FileName: doc.FileName, Content: doc.Content, UploadedAt: doc.UploadedAt}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"file_name", "content", "uploaded_at"}),
	}).Create(&row).Error
	return doc, err
}

// Documents returns the tenant's documents ordered by name.
func (r *Repository) Documents(ctx context.Context, tenant string) ([]domain.Document, error) {
	var rows []documentRow
	if err := r.db.WithContext(ctx).Where("tenant = ?", tenant).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Document, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Document{Name: row.Name, FileName: row.FileName, Content: row.Content, UploadedAt: row.UploadedAt})
	}
	return out, nil
}

// SaveRFQ stores RFQ metadata and assigns an id. Metadata for a document name already
// stored replaces it, keeping its id and creation time.
func (r *Repository) SaveRFQ(ctx context.Context, tenant string, rfq domain.RFQ) (domain.RFQ, error) {
	if rfq.CreatedAt.IsZero() {
		rfq.CreatedAt = r.now()
	}
	row := rfqRow{
		Tenant:             tenant,
		DocumentName:       rfq.DocumentName,
		OrganizationName:   rfq.OrganizationName,
		ReferenceNo:        rfq.ReferenceNo,
		Title:              rfq.Title,
		SubmissionDeadline: rfq.SubmissionDeadline,
		CountryOrRegion:    rfq.CountryOrRegion,
		FileName:           rfq.FileName,
		ContactEmail:       rfq.ContactEmail,
		PromptSuggestions:  rfq.PromptSuggestions,
		CreatedAt:          rfq.CreatedAt,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if row.DocumentName != "" {
			var existing rfqRow
			err := tx.Where("tenant = ? AND document_name = ?", tenant, row.DocumentName).Take(&existing).Error
			switch {
			case err == nil:
				row.ID, row.CreatedAt = existing.ID, existing.CreatedAt
				return tx.Save(&row).Error
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return domain.RFQ{}, err
	}
	rfq.ID, rfq.CreatedAt = row.ID, row.CreatedAt
	return rfq, nil
}

func (row rfqRow) toDomain() domain.RFQ {
	return domain.RFQ{
		ID:                 row.ID,
		DocumentName:       row.DocumentName,
		OrganizationName:   row.OrganizationName,
		ReferenceNo:        row.ReferenceNo,
		Title:              row.Title,
		SubmissionDeadline: row.SubmissionDeadline,
		CountryOrRegion:    row.CountryOrRegion,
		FileName:           row.FileName,
		ContactEmail:       row.ContactEmail,
		PromptSuggestions:  row.PromptSuggestions,
		CreatedAt:          row.CreatedAt,
	}
}

// GetRFQ returns one RFQ or domain.ErrRecordNotFound.
func (r *Repository) GetRFQ(ctx context.Context, tenant string, id int64) (domain.RFQ, error) {
	var row rfqRow
	err := r.db.WithContext(ctx).Where("tenant = ? AND id = ?", tenant, id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.RFQ{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.RFQ{}, err
	}
	return row.toDomain(), nil
}

// RecentRFQs returns the newest RFQs first.
func (r *Repository) RecentRFQs(ctx context.Context, tenant string, limit int) ([]domain.RFQ, error) {
	var rows []rfqRow
	q := r.db.WithContext(ctx).Where("tenant = ?", tenant).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RFQ, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// SaveProposal stores a proposal and assigns an id. A proposal exported from a thread that
// already has one replaces it, keeping its id and creation time.
func (r *Repository) SaveProposal(ctx context.Context, tenant string, p domain.Proposal) (domain.Proposal, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	row := proposalRow{
		Tenant:    tenant,
		RFQID:     p.RFQID,
		Title:     p.Title,
		Content:   p.Content,
		Summary:   p.Summary,
		IsWinning: p.IsWinning,
		Link:      p.Link,
		CreatedAt: p.CreatedAt,
	}
	if p.ThreadID != "" {
		row.ThreadID = &p.ThreadID
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if row.ThreadID != nil {
			var existing proposalRow
			err := tx.Where("tenant = ? AND thread_id = ?", tenant, *row.ThreadID).Take(&existing).Error
			switch {
			case err == nil:
				row.ID, row.CreatedAt = existing.ID, existing.CreatedAt
				return tx.Save(&row).Error
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return domain.Proposal{}, err
	}
	p.ID, p.CreatedAt = row.ID, row.CreatedAt
	return p, nil
}

// Proposals returns the tenant's proposals, newest first.
func (r *Repository) Proposals(ctx context.Context, tenant string, winningOnly bool) ([]domain.Proposal, error) {
	q := r.db.WithContext(ctx).Where("tenant = ?", tenant)
	if winningOnly {
		q = q.Where("is_winning = ?", true)
	}
	var rows []proposalRow
	if err := q.Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Proposal, 0, len(rows))
	for _, row := range rows {
		p := domain.Proposal{
			ID:        row.ID,
			RFQID:     row.RFQID,
			Title:     row.Title,
			Content:   row.Content,
			Summary:   row.Summary,
			IsWinning: row.IsWinning,
			Link:      row.Link,
			CreatedAt: row.CreatedAt,
		}
		if row.ThreadID != nil {
			p.ThreadID = *row.ThreadID
		}
		out = append(out, p)
	}
	return out, nil
}

// RecentActivity merges RFQs and proposals into one feed, newest first.
func (r *Repository) RecentActivity(ctx context.Context, tenant string, limit int) ([]domain.Activity, error) {
	rfqs, err := r.RecentRFQs(ctx, tenant, limit)
	if err != nil {
		return nil, err
	}
	var rows []proposalRow
	q := r.db.WithContext(ctx).Select("id", "title", "created_at").Where("tenant = ?", tenant).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.Activity, 0, len(rfqs)+len(rows))
	for _, rfq := range rfqs {
		out = append(out, domain.Activity{Kind: "rfq", Title: rfq.Title, RefID: rfq.ID, CreatedAt: rfq.CreatedAt})
	}
	for _, p := range rows {
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

// MemoryStore implements ports.MemoryStore on a table keyed by namespace and key.
type MemoryStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMemoryStore creates a long-term memory. Migrate must have run on db.
func NewMemoryStore(db *gorm.DB) *MemoryStore {
	return &MemoryStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func namespaceKey(ns []string) string { return strings.Join(ns, "/") }

// Upsert stores value under key, replacing any previous value.
func (m *MemoryStore) Upsert(ctx context.Context, namespace []string, key string, value map[string]any) error {
	if len(namespace) == 0 || key == "" {
		return errors.New("memory: namespace and key are required")
	}
	row := memoryRow{Namespace: namespaceKey(namespace), Key: key, Value: value, UpdatedAt: m.now()}
	return m.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// Search ranks the namespace's entries with retrieval.RankMemories.
func (m *MemoryStore) Search(ctx context.Context, namespace []string, query string, limit int) ([]domain.MemoryItem, error) {
	var rows []memoryRow
	if err := m.db.WithContext(ctx).Where("namespace = ?", namespaceKey(namespace)).Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]domain.MemoryItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, domain.MemoryItem{
			Namespace: append([]string(nil), namespace...),
			Key:       row.Key,
			Value:     row.Value,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return retrieval.RankMemories(items, query, limit), nil
}
