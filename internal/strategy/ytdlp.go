package strategy

import (
	"context"
	"log"
	"os/exec"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/famomatic/tubefetch/internal/cookies"
	"github.com/famomatic/tubefetch/internal/player"
	"github.com/famomatic/tubefetch/internal/progress"
)

// YtDlp shells out to the yt-dlp binary with the operator's cookie
// file. It is the only strategy that can clear age and region gates,
// which is why it runs first, and the only one with an external
// precondition.
type YtDlp struct {
	CookieFile string
	Reporter   *progress.Reporter
	Logger     *log.Logger
}

func (s *YtDlp) Name() string { return "ytdlp" }

// Ready reports whether the cookie file has content and the yt-dlp
// binary is on PATH.
func (s *YtDlp) Ready() bool {
	if !cookies.Present(s.CookieFile) {
		return false
	}
	_, err := exec.LookPath("yt-dlp")
	return err == nil
}

func (s *YtDlp) Fetch(ctx context.Context, at *Attempt) bool {
	dl := ytdlp.New().
		ForceOverwrites().
		RestrictFilenames().
		Format("bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best").
		MergeOutputFormat("mp4").
		Cookies(s.CookieFile).
		UserAgent(player.BrowserUserAgent).
		NoWarnings().
		Output(at.Target.MediaPath())

	if s.Reporter != nil {
		dl.ProgressFunc(500*time.Millisecond, func(update ytdlp.ProgressUpdate) {
			ev := progress.Event{
				VideoID:  at.ID.String(),
				Strategy: s.Name(),
				Stage:    progress.StageDownloading,
				Bytes:    int64(update.DownloadedBytes),
			}
			if update.TotalBytes > 0 {
				ev.Percent = float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
			}
			s.Reporter.Report(ev)
		})
	}

	if _, err := dl.Run(ctx, at.URL); err != nil {
		s.logf("yt-dlp failed for %s: %v", at.ID, err)
		return false
	}
	// Exit status zero is not enough: yt-dlp can finish cleanly while
	// writing nothing, so the artifact itself decides.
	return fileReady(at.Target.MediaPath())
}

func (s *YtDlp) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}
