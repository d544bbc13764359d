// Package videoid extracts the 11-character video identifier from the
// URL shapes YouTube serves.
package videoid

import (
	"regexp"
	"strings"
)

// ID is an 11-character video identifier.
type ID string

const idLength = 11

var (
	idPattern = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)

	// Ordered from most to least common. Each pattern anchors the token so
	// a truncated or padded identifier never partially matches.
	urlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[?&]v=([0-9A-Za-z_-]{11})(?:[&#]|$)`),
		regexp.MustCompile(`youtu\.be/([0-9A-Za-z_-]{11})(?:[?&#]|$)`),
		regexp.MustCompile(`/embed/([0-9A-Za-z_-]{11})(?:[?&#]|$)`),
		regexp.MustCompile(`/shorts/([0-9A-Za-z_-]{11})(?:[?&#]|$)`),
		regexp.MustCompile(`/v/([0-9A-Za-z_-]{11})(?:[?&#]|$)`),
		regexp.MustCompile(`/e/([0-9A-Za-z_-]{11})(?:[?&#]|$)`),
	}
)

// Parse extracts the video identifier from a free-form URL string.
// The second return value is false when no known shape matches; callers
// treat that as a client-input error, never a fault.
func Parse(raw string) (ID, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	for _, p := range urlPatterns {
		if m := p.FindStringSubmatch(s); len(m) == 2 {
			return ID(m[1]), true
		}
	}
	return "", false
}

// Valid reports whether s is exactly one 11-character identifier.
func Valid(s string) bool {
	return idPattern.MatchString(s)
}

// String returns the identifier as a plain string.
func (id ID) String() string { return string(id) }

// WatchURL returns the canonical watch URL for the identifier.
func (id ID) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + string(id)
}

// EmbedURL returns the embedded-player URL for the identifier.
func (id ID) EmbedURL() string {
	return "https://www.youtube.com/embed/" + string(id)
}
