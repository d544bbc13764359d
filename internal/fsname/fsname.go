// Package fsname derives filesystem-safe base names for downloaded media.
package fsname

import (
	"regexp"
	"strings"

	"github.com/famomatic/tubefetch/internal/videoid"
)

var (
	disallowed = regexp.MustCompile(`[^\w\s]`)
	spaceRuns  = regexp.MustCompile(`\s+`)
)

// Stem returns the sanitized base name for a title: everything outside
// word characters and whitespace is stripped, whitespace runs collapse
// to single underscores, and the identifier is appended as a suffix.
// Deterministic; already-sanitized titles map to themselves.
func Stem(title string, id videoid.ID) string {
	return Sanitize(title) + "-" + id.String()
}

// Sanitize applies the title transformation without the identifier suffix.
func Sanitize(title string) string {
	s := disallowed.ReplaceAllString(title, "")
	s = strings.TrimSpace(s)
	return spaceRuns.ReplaceAllString(s, "_")
}
