package domain

import (
	"errors"
	"time"
)

// ErrRecordNotFound is returned by repositories when a tenant record does not exist.
var ErrRecordNotFound = errors.New("record not found")

// Document is an ingested file's extracted text.
type Document struct {
	Name       string    `json:"document_name"`
	FileName   string    `json:"file_name"`
	Content    string    `json:"file_content"`
	UploadedAt time.Time `json:"upload_time"`
}

// RFQ is the metadata extracted from a request for quotation.
type RFQ struct {
	ID                 int64      `json:"rfq_id"`
	DocumentName       string     `json:"document_name"`
	OrganizationName   string     `json:"organization_name"`
	ReferenceNo        string     `json:"reference_no"`
	Title              string     `json:"title"`
	SubmissionDeadline *time.Time `json:"submission_deadline,omitempty"`
	CountryOrRegion    string     `json:"country_or_region"`
	FileName           string     `json:"file_name"`
	ContactEmail       string     `json:"contact_email"`
	PromptSuggestions  []string   `json:"prompt_suggestions"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Proposal is a stored proposal, winning or not.
//
// ThreadID names the workflow thread the proposal was exported from. Saving a proposal with
// the ThreadID of a stored one replaces it.
type Proposal struct {
	ID        int64     `json:"proposal_id"`
	RFQID     *int64    `json:"rfq_id,omitempty"`
	ThreadID  string    `json:"thread_id,omitempty"`
	Title     string    `json:"proposal_title"`
	Content   string    `json:"proposal_content"`
	Summary   string    `json:"summary"`
	IsWinning bool      `json:"is_winning"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Activity is one entry of the tenant's recent activity feed.
type Activity struct {
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	RefID     int64     `json:"ref_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MemoryItem is one long-term memory entry returned by a search.
type MemoryItem struct {
	Namespace []string       `json:"namespace"`
	Key       string         `json:"key"`
	Value     map[string]any `json:"value"`
	Score     float64        `json:"score"`
	UpdatedAt time.Time      `json:"updated_at"`
}
