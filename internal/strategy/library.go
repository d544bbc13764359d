package strategy

import (
	"context"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/kkdai/youtube/v2"

	"github.com/famomatic/tubefetch/internal/progress"
)

// Library drives the pure-Go youtube client against the watch page.
// It handles the common case where no consent or age gate is in the
// way and a progressive mp4 stream is offered.
type Library struct {
	HTTPClient *http.Client
	// Jar carries the operator's session cookies into every fetch.
	Jar      http.CookieJar
	Reporter *progress.Reporter
	Logger   *log.Logger
}

func (s *Library) Name() string { return "library" }

func (s *Library) Fetch(ctx context.Context, at *Attempt) bool {
	client := youtube.Client{HTTPClient: s.httpClient(at)}
	video, err := client.GetVideoContext(ctx, at.URL)
	if err != nil {
		s.logf("library lookup failed for %s: %v", at.ID, err)
		return false
	}
	format := bestMuxed(video.Formats)
	if format == nil {
		s.logf("library found no progressive format for %s", at.ID)
		return false
	}
	stream, size, err := client.GetStreamContext(ctx, video, format)
	if err != nil {
		s.logf("library stream failed for %s: %v", at.ID, err)
		return false
	}
	defer stream.Close()
	if !saveStream(at.Target.MediaPath(), stream, s.Reporter, at.ID, s.Name(), size) {
		s.logf("library copy failed for %s", at.ID)
		return false
	}
	return fileReady(at.Target.MediaPath())
}

func (s *Library) httpClient(at *Attempt) *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return browserClient(at.ID.WatchURL(), s.Jar)
}

func (s *Library) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

// bestMuxed picks the highest-resolution format carrying both video
// and audio tracks, or nil when the response offers none.
func bestMuxed(formats []youtube.Format) *youtube.Format {
	var muxed []youtube.Format
	for _, f := range formats {
		if strings.HasPrefix(f.MimeType, "video/") && f.AudioChannels > 0 {
			muxed = append(muxed, f)
		}
	}
	if len(muxed) == 0 {
		return nil
	}
	sort.SliceStable(muxed, func(i, j int) bool {
		if muxed[i].Height != muxed[j].Height {
			return muxed[i].Height > muxed[j].Height
		}
		return muxed[i].Bitrate > muxed[j].Bitrate
	})
	return &muxed[0]
}

// bestAudio picks the highest-bitrate audio-only format, or nil.
func bestAudio(formats []youtube.Format) *youtube.Format {
	var audio []youtube.Format
	for _, f := range formats {
		if strings.HasPrefix(f.MimeType, "audio/") {
			audio = append(audio, f)
		}
	}
	if len(audio) == 0 {
		return nil
	}
	sort.SliceStable(audio, func(i, j int) bool {
		return audio[i].Bitrate > audio[j].Bitrate
	})
	return &audio[0]
}
