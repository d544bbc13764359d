package strategy

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/kkdai/youtube/v2"

	"github.com/famomatic/tubefetch/internal/progress"
)

// Audio is the terminal fallback: when no strategy can produce full
// video it salvages the best audio-only track and leaves a note file
// telling the user what they got instead.
type Audio struct {
	HTTPClient *http.Client
	Jar        http.CookieJar
	Reporter   *progress.Reporter
	Logger     *log.Logger
}

func (s *Audio) Name() string { return "audio" }

func (s *Audio) Fetch(ctx context.Context, at *Attempt) bool {
	client := youtube.Client{HTTPClient: s.httpClient(at)}
	video, err := client.GetVideoContext(ctx, at.URL)
	if err != nil {
		s.logf("audio lookup failed for %s: %v", at.ID, err)
		return false
	}
	format := bestAudio(video.Formats)
	if format == nil {
		s.logf("audio found no audio-only format for %s", at.ID)
		return false
	}
	stream, size, err := client.GetStreamContext(ctx, video, format)
	if err != nil {
		s.logf("audio stream failed for %s: %v", at.ID, err)
		return false
	}
	defer stream.Close()
	if !saveStream(at.Target.AudioPath(), stream, s.Reporter, at.ID, s.Name(), size) {
		s.logf("audio copy failed for %s", at.ID)
		return false
	}
	if !fileReady(at.Target.AudioPath()) {
		return false
	}
	s.writeNote(at)
	return true
}

// writeNote records that only audio could be downloaded. A failure to
// write the note does not fail the attempt: the artifact exists.
func (s *Audio) writeNote(at *Attempt) {
	title := at.Target.Base
	if at.Meta != nil && at.Meta.Title != "" {
		title = at.Meta.Title
	}
	body := fmt.Sprintf("Only the audio track could be downloaded for %q (video id %s).\n"+
		"No playable video format was available through any download method.\n"+
		"The audio was saved as %s.\n", title, at.ID, at.Target.AudioPath())
	if err := os.WriteFile(at.Target.NotePath(), []byte(body), 0o644); err != nil {
		s.logf("audio note write failed for %s: %v", at.ID, err)
	}
}

func (s *Audio) httpClient(at *Attempt) *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return browserClient(at.ID.WatchURL(), s.Jar)
}

func (s *Audio) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}
