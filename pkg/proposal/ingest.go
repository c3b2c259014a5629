package proposal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aretw0/rfqflow/internal/logging"
	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/ports"
)

// SuggestionCount is the number of prompt suggestions kept per RFQ.
const SuggestionCount = 4

// extractRunes bounds the document text sent to the model.
const extractRunes = 24000

// IngestResult is a stored document and the RFQ extracted from it.
type IngestResult struct {
	Document domain.Document `json:"document"`
	RFQ      domain.RFQ      `json:"rfq"`
}

// IngestService stores uploaded RFQ documents and records the metadata and prompt
// suggestions a model extracts from them.
type IngestService struct {
	LLM    ports.LLM
	Repo   ports.DocumentRepository
	Model  string
	Logger *slog.Logger
}

// NewIngestService creates the service.
func NewIngestService(llm ports.LLM, repo ports.DocumentRepository, model string, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &IngestService{LLM: llm, Repo: repo, Model: model, Logger: logger}
}

// Ingest stores doc for tenant, then extracts its RFQ metadata and prompt suggestions.
//
// The document is stored before the model is called, so it stays searchable when
// extraction fails. A reply the model gets wrong leaves the fields empty; a failed call
// is returned. Ingesting a document name again replaces its RFQ.
func (s *IngestService) Ingest(ctx context.Context, tenant string, doc domain.Document) (IngestResult, error) {
	if strings.TrimSpace(doc.Name) == "" {
		return IngestResult{}, errors.New("ingest: document name is required")
	}
	if doc.FileName == "" {
		doc.FileName = doc.Name
	}
	stored, err := s.Repo.SaveDocument(ctx, tenant, doc)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest: save document: %w", err)
	}

	rfq, err := s.ExtractMetadata(ctx, doc.Content)
	if err != nil {
		return IngestResult{Document: stored}, fmt.Errorf("ingest: extract metadata: %w", err)
	}
	rfq.PromptSuggestions, err = s.Suggest(ctx, doc.Content)
	if err != nil {
		return IngestResult{Document: stored}, fmt.Errorf("ingest: prompt suggestions: %w", err)
	}
	rfq.DocumentName = doc.Name
	rfq.FileName = doc.FileName
	if rfq.Title == "" {
		rfq.Title = doc.Name
	}

	saved, err := s.Repo.SaveRFQ(ctx, tenant, rfq)
	if err != nil {
		return IngestResult{Document: stored}, fmt.Errorf("ingest: save rfq: %w", err)
	}
	s.Logger.Info("rfq ingested", "tenant", tenant, "document", doc.Name, "rfq_id", saved.ID, "suggestions", len(saved.PromptSuggestions))
	return IngestResult{Document: stored, RFQ: saved}, nil
}

type rfqMetadata struct {
	OrganizationName   *string `json:"organization_name"`
	Title              *string `json:"title"`
	ReferenceNo        *string `json:"reference_no"`
	SubmissionDeadline *string `json:"submission_deadline"`
	CountryOrRegion    *string `json:"country_or_region"`
	ContactEmail       *string `json:"contact_email"`
}

// ExtractMetadata asks the model for the RFQ fields stated in text.
func (s *IngestService) ExtractMetadata(ctx context.Context, text string) (domain.RFQ, error) {
	reply, err := s.complete(ctx, metadataPrompt, text)
	if err != nil {
		return domain.RFQ{}, err
	}
	var md rfqMetadata
	if err := decodeJSON(reply, &md); err != nil {
		s.Logger.Warn("unparsable metadata reply", "err", err)
		return domain.RFQ{}, nil
	}
	rfq := domain.RFQ{
		OrganizationName: deref(md.OrganizationName),
		Title:            deref(md.Title),
		ReferenceNo:      deref(md.ReferenceNo),
		CountryOrRegion:  deref(md.CountryOrRegion),
		ContactEmail:     deref(md.ContactEmail),
	}
	if d := deref(md.SubmissionDeadline); d != "" {
		if at, err := time.Parse(time.DateOnly, d); err == nil {
			rfq.SubmissionDeadline = &at
		} else {
			s.Logger.Warn("ignoring submission deadline", "value", d, "err", err)
		}
	}
	return rfq, nil
}

// Suggest asks the model for questions worth asking about text.
func (s *IngestService) Suggest(ctx context.Context, text string) ([]string, error) {
	reply, err := s.complete(ctx, suggestionsPrompt, text)
	if err != nil {
		return nil, err
	}
	out, err := parseSuggestions(reply)
	if err != nil {
		s.Logger.Warn("unparsable suggestions reply", "err", err)
		return []string{}, nil
	}
	return out, nil
}

func (s *IngestService) complete(ctx context.Context, system, text string) (string, error) {
	reply, err := s.LLM.Complete(ctx, []domain.Message{
		{Role: domain.RoleSystem, Content: system},
		{Role: domain.RoleUser, Content: clip(text, extractRunes)},
	}, ports.ModelConfig{Model: s.Model, Temperature: domain.Ptr(0.0), JSON: true})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply.Content), nil
}

// parseSuggestions accepts a bare JSON array, an object holding the list under prompts,
// questions or suggestions, or an object with a single list value.
func parseSuggestions(reply string) ([]string, error) {
	var list []string
	arr, obj := strings.IndexByte(reply, '['), strings.IndexByte(reply, '{')
	if arr >= 0 && (obj < 0 || arr < obj) {
		end := strings.LastIndexByte(reply, ']')
		if end < arr {
			return nil, errors.New("unterminated JSON array in reply")
		}
		if err := json.Unmarshal([]byte(reply[arr:end+1]), &list); err != nil {
			return nil, fmt.Errorf("decode reply: %w", err)
		}
		return cleanSuggestions(list), nil
	}

	var fields map[string]json.RawMessage
	if err := decodeJSON(reply, &fields); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	for _, key := range []string{"prompts", "questions", "suggestions"} {
		if v, ok := fields[key]; ok {
			raw = v
			break
		}
	}
	if raw == nil && len(fields) == 1 {
		for _, v := range fields {
			raw = v
		}
	}
	if raw == nil {
		return nil, errors.New("no suggestion list in reply")
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	return cleanSuggestions(list), nil
}

func cleanSuggestions(list []string) []string {
	out := make([]string, 0, SuggestionCount)
	for _, q := range list {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
		if len(out) == SuggestionCount {
			break
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// Suggestions returns the prompt suggestions of an RFQ, or of the tenant's newest RFQ
// when rfqID is nil. A tenant without RFQs gets an empty list.
func Suggestions(ctx context.Context, repo ports.DocumentRepository, tenant string, rfqID *int64) ([]string, error) {
	var rfq domain.RFQ
	if rfqID != nil {
		var err error
		if rfq, err = repo.GetRFQ(ctx, tenant, *rfqID); err != nil {
			return nil, err
		}
	} else {
		recent, err := repo.RecentRFQs(ctx, tenant, 1)
		if err != nil {
			return nil, err
		}
		if len(recent) == 0 {
			return []string{}, nil
		}
		rfq = recent[0]
	}
	if rfq.PromptSuggestions == nil {
		return []string{}, nil
	}
	return rfq.PromptSuggestions, nil
}
