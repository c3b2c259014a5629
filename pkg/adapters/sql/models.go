package sql

import "time"

type threadRow struct {
	ThreadID  string `gorm:"primaryKey;size:191"`
	RunStatus string `gorm:"size:32;index"`
	Version   int
	Data      []byte
	UpdatedAt time.Time
}

func (threadRow) TableName() string { return "rfq_threads" }

type versionRow struct {
	ID        uint   `gorm:"primaryKey"`
	ThreadID  string `gorm:"size:191;index:idx_thread_versions"`
	Version   int
	Data      []byte
	CreatedAt time.Time
}

func (versionRow) TableName() string { return "rfq_thread_versions" }

type documentRow struct {
	ID         uint   `gorm:"primaryKey"`
	Tenant     string `gorm:"size:191;uniqueIndex:idx_document_name"`
	Name       string `gorm:"size:512;uniqueIndex:idx_document_name"`
	FileName   string `gorm:"size:512"`
	Content    string
	UploadedAt time.Time
}

func (documentRow) TableName() string { return "rfq_documents" }

type rfqRow struct {
	ID                 int64  `gorm:"primaryKey"`
	Tenant             string `gorm:"size:191;index:idx_rfq_document"`
	DocumentName       string `gorm:"size:512;index:idx_rfq_document"`
	OrganizationName   string
	ReferenceNo        string
	Title              string
	SubmissionDeadline *time.Time
	CountryOrRegion    string
	FileName           string
	ContactEmail       string
	PromptSuggestions  []string `gorm:"serializer:json"`
	CreatedAt          time.Time
}

func (rfqRow) TableName() string { return "rfq_requests" }

// proposalRow.ThreadID is NULL for proposals that were not exported from a thread.
type proposalRow struct {
	ID        int64   `gorm:"primaryKey"`
	Tenant    string  `gorm:"size:191;index;uniqueIndex:idx_proposal_thread"`
	ThreadID  *string `gorm:"size:191;uniqueIndex:idx_proposal_thread"`
	RFQID     *int64
	Title     string
	Content   string
	Summary   string
	IsWinning bool `gorm:"index"`
	Link      string
	CreatedAt time.Time
}

func (proposalRow) TableName() string { return "rfq_proposals" }

type memoryRow struct {
	Namespace string         `gorm:"primaryKey;size:191"`
	Key       string         `gorm:"primaryKey;size:191"`
	Value     map[string]any `gorm:"serializer:json"`
	UpdatedAt time.Time
}

func (memoryRow) TableName() string { return "rfq_memories" }
