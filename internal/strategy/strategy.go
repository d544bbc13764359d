// Package strategy holds the acquisition strategies a download can be
// attempted with. A strategy either produces the expected artifact on
// disk and reports success, or cleans up after itself and reports
// failure; it never propagates errors upward.
package strategy

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/famomatic/tubefetch/internal/meta"
	"github.com/famomatic/tubefetch/internal/player"
	"github.com/famomatic/tubefetch/internal/progress"
	"github.com/famomatic/tubefetch/internal/target"
	"github.com/famomatic/tubefetch/internal/videoid"
)

// Attempt is the immutable input shared by every strategy in a chain.
type Attempt struct {
	URL    string
	ID     videoid.ID
	Target target.Target
	Meta   *meta.Video
}

// Strategy is one way of acquiring a video. Fetch reports whether the
// expected artifact now exists on disk; any error detail stays inside
// the strategy's own logging.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, at *Attempt) bool
}

// Gated is implemented by strategies that may be skipped outright when
// a precondition does not hold.
type Gated interface {
	Ready() bool
}

// fileReady reports whether path exists as a regular file with content.
// A zero-byte artifact counts as a failed attempt.
func fileReady(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// saveStream drains src into a .part sibling of dst and renames it into
// place once the copy finished with content. The partial file is
// removed on any failure.
func saveStream(dst string, src io.Reader, rep *progress.Reporter, id videoid.ID, name string, total int64) bool {
	part := dst + ".part"
	f, err := os.Create(part)
	if err != nil {
		return false
	}
	var w io.Writer = f
	if rep != nil {
		w = rep.Meter(f, id.String(), name, total)
	}
	written, err := io.Copy(w, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil || written == 0 {
		os.Remove(part)
		return false
	}
	if err := os.Rename(part, dst); err != nil {
		os.Remove(part)
		return false
	}
	return true
}

// headerTransport stamps browser-shaped headers onto every request so
// the googlevideo CDN treats the stream fetch like a page asset.
type headerTransport struct {
	base    http.RoundTripper
	referer string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", player.BrowserUserAgent)
	clone.Header.Set("Accept", "*/*")
	clone.Header.Set("Accept-Language", "en-US,en;q=0.9")
	clone.Header.Set("Origin", "https://www.youtube.com")
	clone.Header.Set("Sec-Fetch-Mode", "navigate")
	if t.referer != "" {
		clone.Header.Set("Referer", t.referer)
	}
	return base.RoundTrip(clone)
}

// browserClient pairs the browser-header transport with the operator's
// session cookies, when a jar was loaded.
func browserClient(referer string, jar http.CookieJar) *http.Client {
	return &http.Client{Transport: &headerTransport{referer: referer}, Jar: jar}
}
