package note

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	frontMatterDelimiter = "---"
	noteType             = "idea"
)

// idCounter disambiguates IDs for notes committed within the same second.
var idCounter atomic.Int64

// Request carries one captured message into the writer.
type Request struct {
	Text       string
	CapturedAt time.Time
}

// IdeaNote represents one persisted capture. Immutable once written.
type IdeaNote struct {
	ID        string
	CreatedAt time.Time
	Source    string
	Title     string
	Filename  string
	Body      string
}

// frontMatter holds the metadata block fields in their on-disk order.
type frontMatter struct {
	ID      string    `yaml:"id"`
	Created time.Time `yaml:"created"`
	Source  string    `yaml:"source"`
	Type    string    `yaml:"type"`
}

// NewID builds a note identifier from the capture timestamp (to the
// microsecond) plus a process-wide sequence. The sequence separates
// captures sharing a clock reading; the microseconds separate processes,
// since the counter restarts at zero on every launch.
func NewID(capturedAt time.Time) string {
	seq := idCounter.Add(1)
	return fmt.Sprintf("%s-%06d-%04d", capturedAt.Format(time.RFC3339), capturedAt.Nanosecond()/1000, seq)
}

// Render builds the on-disk note content: a ----delimited metadata block
// followed by a blank line and the body with trailing whitespace trimmed.
func Render(n *IdeaNote) ([]byte, error) {
	fm := frontMatter{
		ID:      n.ID,
		Created: n.CreatedAt.Truncate(time.Second),
		Source:  n.Source,
		Type:    noteType,
	}
	yamlBytes, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal note metadata: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(frontMatterDelimiter + "\n")
	sb.Write(yamlBytes)
	sb.WriteString(frontMatterDelimiter + "\n\n")
	sb.WriteString(strings.TrimRight(n.Body, " \t\r\n"))
	sb.WriteString("\n")
	return []byte(sb.String()), nil
}

// Parse reads a rendered note back into an IdeaNote. Used to inspect
// already-written vault files; the filename is not recoverable from content.
func Parse(raw []byte) (*IdeaNote, error) {
	s := string(raw)
	if !strings.HasPrefix(s, frontMatterDelimiter+"\n") {
		return nil, fmt.Errorf("missing metadata delimiter")
	}
	rest := s[len(frontMatterDelimiter)+1:]
	idx := strings.Index(rest, "\n"+frontMatterDelimiter+"\n")
	if idx == -1 {
		return nil, fmt.Errorf("unclosed metadata block")
	}
	var fm frontMatter
	if err := yaml.Unmarshal([]byte(rest[:idx]), &fm); err != nil {
		return nil, fmt.Errorf("failed to parse note metadata: %w", err)
	}

	body := rest[idx+len("\n"+frontMatterDelimiter+"\n"):]
	body = strings.TrimPrefix(body, "\n")

	title, _ := Derive(body)
	return &IdeaNote{
		ID:        fm.ID,
		CreatedAt: fm.Created,
		Source:    fm.Source,
		Title:     title,
		Body:      body,
	}, nil
}
