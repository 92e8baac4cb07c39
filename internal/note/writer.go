package note

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// maxNameAttempts bounds the filename disambiguation loop.
const maxNameAttempts = 100

// Writer persists idea notes into the vault's ideas directory. It is the
// only component that creates note files; every write is create-exclusive
// so an existing note is never overwritten.
type Writer struct {
	dir    string
	source string
	logger *slog.Logger
}

// NewWriter creates a writer targeting the given ideas directory.
func NewWriter(dir, source string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, source: source, logger: logger}
}

// Write persists one capture as a new Markdown file and returns the note
// with the filename actually used. Same-second collisions on the derived
// name get a numeric suffix; after maxNameAttempts the write fails.
func (w *Writer) Write(req Request) (*IdeaNote, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ideas directory: %w", err)
	}

	title, slug := Derive(req.Text)
	n := &IdeaNote{
		ID:        NewID(req.CapturedAt),
		CreatedAt: req.CapturedAt,
		Source:    w.source,
		Title:     title,
		Body:      req.Text,
	}

	content, err := Render(n)
	if err != nil {
		return nil, err
	}

	base := fmt.Sprintf("%s_%s", req.CapturedAt.Format("2006-01-02_150405"), slug)
	for attempt := 1; attempt <= maxNameAttempts; attempt++ {
		name := base + ".md"
		if attempt > 1 {
			name = fmt.Sprintf("%s-%d.md", base, attempt)
		}

		f, err := os.OpenFile(filepath.Join(w.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create note file: %w", err)
		}

		if _, err := f.Write(content); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write note file: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("failed to close note file: %w", err)
		}

		n.Filename = name
		w.logger.Info("idea saved", "file", name, "title", title)
		return n, nil
	}

	return nil, fmt.Errorf("no free filename for %s after %d attempts", base, maxNameAttempts)
}

// Append adds a markdown block to an existing note file, ensuring a single
// newline separates it from the current content.
func (w *Writer) Append(filename, markdown string) error {
	path := filepath.Join(w.dir, filename)
	existing, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read note file: %w", err)
	}

	var sb strings.Builder
	sb.Write(existing)
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString(strings.TrimRight(markdown, " \t\r\n"))
	sb.WriteString("\n")

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to append to note file: %w", err)
	}

	w.logger.Info("note appended", "file", filename)
	return nil
}
