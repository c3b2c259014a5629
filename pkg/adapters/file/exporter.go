package file

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Exporter implements ports.Exporter over a directory tree.
//
// Templates live in Root/templates as "<templateID>.md". Folders and documents are created under
// Root/workspace, and a document id is its slash-separated path relative to the workspace.
type Exporter struct {
	Root string
}

// NewExporter creates an exporter rooted at root.
func NewExporter(root string) *Exporter {
	if root == "" {
		root = filepath.Join(".rfqflow", "export")
	}
	return &Exporter{Root: root}
}

func (e *Exporter) workspace() string { return filepath.Join(e.Root, "workspace") }

func (e *Exporter) resolve(id string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(id))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("export: invalid id %q", id)
	}
	if clean == "." {
		return e.workspace(), nil
	}
	return filepath.Join(e.workspace(), clean), nil
}

func safeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("export: invalid name %q", name)
	}
	return name, nil
}

// EnsureFolder returns the id of the named folder under parentID, creating it if needed.
func (e *Exporter) EnsureFolder(ctx context.Context, parentID, name string) (string, error) {
	name, err := safeName(name)
	if err != nil {
		return "", err
	}
	id := name
	if parentID != "" {
		id = parentID + "/" + name
	}
	dir, err := e.resolve(id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create folder %s: %w", id, err)
	}
	return id, nil
}

// CopyTemplate copies a template into folderID as a new document named name.
// Name clashes get a numeric suffix, as Drive would show "name (2)".
func (e *Exporter) CopyTemplate(ctx context.Context, templateID, name, folderID string) (string, error) {
	name, err := safeName(name)
	if err != nil {
		return "", err
	}
	tpl, err := os.ReadFile(filepath.Join(e.Root, "templates", templateID+".md"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("export: template %q not found", templateID)
		}
		return "", fmt.Errorf("export: read template: %w", err)
	}

	dir, err := e.resolve(folderID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create folder: %w", err)
	}

	docName := name + ".md"
	for n := 2; ; n++ {
		if _, err := os.Stat(filepath.Join(dir, docName)); errors.Is(err, os.ErrNotExist) {
			break
		}
		docName = fmt.Sprintf("%s (%d).md", name, n)
	}
	if err := os.WriteFile(filepath.Join(dir, docName), tpl, 0o644); err != nil {
		return "", fmt.Errorf("export: write document: %w", err)
	}

	if folderID == "" {
		return docName, nil
	}
	return folderID + "/" + docName, nil
}

// ReplacePlaceholders replaces every "{KEY}" in the document with its value.
func (e *Exporter) ReplacePlaceholders(ctx context.Context, docID string, replacements map[string]string) error {
	path, err := e.resolve(docID)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("export: read document %s: %w", docID, err)
	}
	pairs := make([]string, 0, 2*len(replacements))
	for k, v := range replacements {
		pairs = append(pairs, "{"+k+"}", v)
	}
	out := strings.NewReplacer(pairs...).Replace(string(data))
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("export: write document %s: %w", docID, err)
	}
	return nil
}

// ViewLink returns a file:// URL for the document.
func (e *Exporter) ViewLink(ctx context.Context, docID string) (string, error) {
	path, err := e.resolve(docID)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("export: document %s: %w", docID, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
