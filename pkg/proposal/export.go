package proposal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/ports"
)

// DefaultTemplate is the template copied for every exported proposal.
const DefaultTemplate = "ProposalTemplate"

// ExportFolder is the workspace folder that holds exported proposals, one subfolder per day.
const ExportFolder = "Proposals"

const summaryRunes = 300

// ErrNotExportable is returned when a thread has no approved proposal.
var ErrNotExportable = errors.New("thread has no approved proposal")

// ThreadReader loads the latest checkpoint of a thread. *runner.Runner satisfies it.
type ThreadReader interface {
	Get(ctx context.Context, threadID string) (*domain.Checkpoint, error)
}

// ExportRequest tunes one export.
type ExportRequest struct {
	// Title overrides the title found in the proposal.
	Title string `json:"title,omitempty"`
	// RFQID links the stored proposal to the RFQ it answers.
	RFQID *int64 `json:"rfq_id,omitempty"`
	// Winning marks the stored proposal as a winning reference for future critiques.
	Winning bool `json:"is_winning,omitempty"`
}

// ExportResult describes a published proposal.
type ExportResult struct {
	DocumentID string          `json:"document_id"`
	Link       string          `json:"link"`
	Proposal   domain.Proposal `json:"proposal"`
}

// ExportService publishes approved proposals to the document workspace and records them.
type ExportService struct {
	Threads  ThreadReader
	Exporter ports.Exporter
	Repo     ports.DocumentRepository
	Template string
	Now      func() time.Time
}

// NewExportService creates the service with the default template.
func NewExportService(threads ThreadReader, exporter ports.Exporter, repo ports.DocumentRepository) *ExportService {
	return &ExportService{
		Threads:  threads,
		Exporter: exporter,
		Repo:     repo,
		Template: DefaultTemplate,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Export copies the template, fills it with the approved proposal of threadID and
// stores the proposal for the thread's tenant. Exporting a thread again replaces its
// stored proposal.
func (e *ExportService) Export(ctx context.Context, threadID string, req ExportRequest) (ExportResult, error) {
	cp, err := e.Threads.Get(ctx, threadID)
	if err != nil {
		return ExportResult{}, err
	}
	body := cp.State.Proposal()
	if cp.RunStatus != domain.RunDone || cp.State.Status != domain.StatusApproved || body == "" {
		return ExportResult{}, fmt.Errorf("%w: thread %s is %s/%s", ErrNotExportable, threadID, cp.RunStatus, cp.State.Status)
	}

	title, summary := Metadata(body)
	if req.Title != "" {
		title = req.Title
	}
	if title == "" {
		title = "Proposal " + threadID
	}

	day := e.Now().Format(time.DateOnly)
	root, err := e.Exporter.EnsureFolder(ctx, "", ExportFolder)
	if err != nil {
		return ExportResult{}, fmt.Errorf("export: %w", err)
	}
	folder, err := e.Exporter.EnsureFolder(ctx, root, day)
	if err != nil {
		return ExportResult{}, fmt.Errorf("export: %w", err)
	}
	docID, err := e.Exporter.CopyTemplate(ctx, e.Template, docName(title), folder)
	if err != nil {
		return ExportResult{}, fmt.Errorf("export: copy template: %w", err)
	}
	if err := e.Exporter.ReplacePlaceholders(ctx, docID, map[string]string{
		"BODY":    body,
		"TITLE":   title,
		"SUMMARY": summary,
		"DATE":    day,
	}); err != nil {
		return ExportResult{}, fmt.Errorf("export: fill template: %w", err)
	}
	link, err := e.Exporter.ViewLink(ctx, docID)
	if err != nil {
		return ExportResult{}, fmt.Errorf("export: %w", err)
	}

	stored, err := e.Repo.SaveProposal(ctx, cp.State.Tenant(), domain.Proposal{
		ThreadID:  threadID,
		RFQID:     req.RFQID,
		Title:     title,
		Content:   body,
		Summary:   summary,
		IsWinning: req.Winning,
		Link:      link,
	})
	if err != nil {
		return ExportResult{}, fmt.Errorf("export: save proposal: %w", err)
	}
	return ExportResult{DocumentID: docID, Link: link, Proposal: stored}, nil
}

// Metadata extracts a title and a short summary from a Markdown proposal.
// The title is the first heading, or the first line when there is none. The summary is
// the first paragraph after it, cut at a word boundary.
func Metadata(body string) (title, summary string) {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	rest := lines
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		title = strings.TrimSpace(strings.TrimLeft(line, "#"))
		title = strings.Trim(title, "* ")
		rest = lines[i+1:]
		break
	}

	var para []string
	for _, line := range rest {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			if len(para) > 0 {
				break
			}
			continue
		}
		para = append(para, line)
	}
	return title, truncate(strings.Join(para, " "), summaryRunes)
}

func docName(title string) string {
	name := strings.NewReplacer("/", "-", "\\", "-").Replace(title)
	if name == "." || name == ".." {
		return "proposal"
	}
	return truncate(name, 120)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)[:max]
	cut := string(r)
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
