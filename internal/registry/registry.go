// Package registry derives download status from the contents of the
// download directory. The filesystem is the only source of truth:
// artifacts mean success, ERROR- markers mean failure, NOTE- files
// mean an audio-only outcome.
package registry

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/famomatic/tubefetch/internal/fsx"
	"github.com/famomatic/tubefetch/internal/target"
)

// Status values for a Record.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusAudioOnly = "audio-only"
)

// File kinds.
const (
	KindMedia = "media"
	KindAudio = "audio"
	KindError = "error"
	KindNote  = "note"
)

// Record is one entry derived from a file in the download directory.
type Record struct {
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	VideoID    string    `json:"videoId,omitempty"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
	URL        string    `json:"url,omitempty"`
}

// Stats aggregates a scan.
type Stats struct {
	SuccessCount   int   `json:"successCount"`
	ErrorCount     int   `json:"errorCount"`
	AudioOnlyCount int   `json:"audioOnlyCount"`
	TotalFiles     int   `json:"totalFiles"`
	TotalSize      int64 `json:"totalSize"`
}

// Registry scans a download directory on demand. It holds no state
// between scans; concurrent writers are resolved by whoever wrote
// last.
type Registry struct {
	Dir string
}

// trailing "-<video id>" before the extension
var idSuffixPattern = regexp.MustCompile(`-([0-9A-Za-z_-]{11})\.[a-z0-9]+$`)

// Scan reads the directory and classifies every relevant file. In-flight
// .part files and unknown extensions are invisible.
func (r *Registry) Scan() ([]Record, Stats, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		return nil, Stats{}, err
	}

	var records []Record
	var stats Stats
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		kind, status, ok := classify(name)
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		rec := Record{
			Name:       name,
			Kind:       kind,
			Status:     status,
			VideoID:    extractID(name),
			Size:       info.Size(),
			CreatedAt:  fsx.CreatedAt(info),
			ModifiedAt: info.ModTime(),
		}
		stats.TotalFiles++
		stats.TotalSize += info.Size()
		switch status {
		case StatusCompleted:
			stats.SuccessCount++
			rec.URL = "/downloads/" + name
		case StatusFailed:
			stats.ErrorCount++
		case StatusAudioOnly:
			stats.AudioOnlyCount++
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, stats, nil
}

// Completed reports whether an artifact for id already exists.
func (r *Registry) Completed(id string) (string, bool) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		name := entry.Name()
		if _, status, ok := classify(name); !ok || status != StatusCompleted {
			continue
		}
		if extractID(name) == id {
			return name, true
		}
	}
	return "", false
}

// Failed reports whether an error marker for id exists.
func (r *Registry) Failed(id string) bool {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, target.ErrorPrefix) {
			continue
		}
		if extractID(name) == id {
			return true
		}
	}
	return false
}

func classify(name string) (kind, status string, ok bool) {
	switch {
	case strings.HasPrefix(name, target.ErrorPrefix):
		return KindError, StatusFailed, true
	case strings.HasPrefix(name, target.NotePrefix):
		return KindNote, StatusAudioOnly, true
	case strings.HasSuffix(name, target.MediaExt):
		return KindMedia, StatusCompleted, true
	case strings.HasSuffix(name, target.AudioExt):
		return KindAudio, StatusCompleted, true
	}
	return "", "", false
}

// extractID pulls the trailing video id out of a generated filename.
// Best effort: note files carry no id and return empty.
func extractID(name string) string {
	m := idSuffixPattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return ""
	}
	return m[1]
}
