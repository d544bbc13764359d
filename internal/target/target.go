// Package target is the single source of truth for where a download's
// artifact and its sibling marker files live. Every strategy and the
// status scan agree on the naming scheme defined here.
package target

import (
	"path/filepath"

	"github.com/famomatic/tubefetch/internal/fsname"
	"github.com/famomatic/tubefetch/internal/videoid"
)

// Naming conventions shared with the registry's directory scan.
const (
	MediaExt    = ".mp4"
	AudioExt    = ".mp3"
	ErrorPrefix = "ERROR-"
	NotePrefix  = "NOTE-"
)

// Target locates the artifact and marker files for one download.
type Target struct {
	// Dir is the download directory everything lands in.
	Dir string
	// Base is the sanitized title without the identifier suffix.
	Base string
	// Stem is Base plus the "-<id>" suffix; all identifier-bearing
	// filenames derive from it.
	Stem string
}

// New derives the target paths for a video title in dir.
func New(dir, title string, id videoid.ID) Target {
	return Target{
		Dir:  dir,
		Base: fsname.Sanitize(title),
		Stem: fsname.Stem(title, id),
	}
}

// MediaName is the filename of the full video artifact.
func (t Target) MediaName() string { return t.Stem + MediaExt }

// MediaPath is where a successful video download lands.
func (t Target) MediaPath() string { return filepath.Join(t.Dir, t.MediaName()) }

// AudioName is the filename of the audio-only fallback artifact.
func (t Target) AudioName() string { return t.Stem + AudioExt }

// AudioPath is where the audio-only fallback lands.
func (t Target) AudioPath() string { return filepath.Join(t.Dir, t.AudioName()) }

// NotePath is the audio-only note marker. It carries no identifier
// suffix; the note names the audio artifact in its body instead.
func (t Target) NotePath() string {
	return filepath.Join(t.Dir, NotePrefix+t.Base+".txt")
}

// ErrorPath is the marker written when every strategy failed.
func (t Target) ErrorPath() string {
	return filepath.Join(t.Dir, ErrorPrefix+t.Stem+".txt")
}
