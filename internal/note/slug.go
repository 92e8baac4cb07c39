package note

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxTitleLen  = 80
	maxSlugLen   = 50
	fallbackSlug = "untitled"
)

var (
	slugStrip    = regexp.MustCompile(`[^a-z0-9\s_-]+`)
	slugHyphens  = regexp.MustCompile(`[\s_]+`)
	slugCollapse = regexp.MustCompile(`-+`)
)

// Derive produces a display title and a filesystem-safe slug from raw
// captured text. Deterministic and side-effect free.
func Derive(text string) (title, slug string) {
	title = deriveTitle(text)
	return title, Slugify(title)
}

// deriveTitle takes the first non-blank line of the text, truncated to a
// reasonable length on a word boundary.
func deriveTitle(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	line := trimmed
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		line = strings.TrimSpace(trimmed[:i])
	}
	return truncateOnWord(line, maxTitleLen)
}

// Slugify lowercases, drops everything but alphanumerics, collapses
// separator runs to single hyphens and caps the length. Empty input after
// normalization yields the fallback slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugHyphens.ReplaceAllString(s, "-")
	s = slugCollapse.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return fallbackSlug
	}
	if len(s) > maxSlugLen {
		s = strings.Trim(s[:maxSlugLen], "-")
	}
	return s
}

func truncateOnWord(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	cut := string([]rune(s)[:max])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
