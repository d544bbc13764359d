// Package orchestrator runs the ordered chain of acquisition
// strategies for a single download and records the terminal outcome
// on disk.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/famomatic/tubefetch/internal/progress"
	"github.com/famomatic/tubefetch/internal/strategy"
)

// Chain tries each strategy in order until one succeeds. A strategy
// that succeeds ends the run; exhausting the chain writes an error
// marker next to where the artifact would have been.
type Chain struct {
	Strategies []strategy.Strategy

	// Timeout bounds each individual strategy attempt. Zero means
	// a strategy may run as long as the parent context allows.
	Timeout time.Duration

	Reporter *progress.Reporter
	Logger   *log.Logger
}

// Run executes the chain for one attempt and reports whether any
// strategy produced an artifact.
func (c *Chain) Run(ctx context.Context, at *strategy.Attempt) bool {
	c.report(progress.Event{VideoID: at.ID.String(), Stage: progress.StageStarted})

	var skipped, failed []string
	for _, s := range c.Strategies {
		if g, ok := s.(strategy.Gated); ok && !g.Ready() {
			c.logf("download %s: skipping %s, precondition not met", at.ID, s.Name())
			skipped = append(skipped, s.Name())
			continue
		}
		c.logf("download %s: trying %s", at.ID, s.Name())
		if c.attempt(ctx, s, at) {
			c.logf("download %s: %s succeeded", at.ID, s.Name())
			c.report(progress.Event{VideoID: at.ID.String(), Strategy: s.Name(), Stage: progress.StageFinished})
			return true
		}
		c.logf("download %s: %s failed, falling through", at.ID, s.Name())
		failed = append(failed, s.Name())
	}

	c.logf("download %s: all strategies exhausted", at.ID)
	c.writeMarker(at, skipped, failed)
	c.report(progress.Event{VideoID: at.ID.String(), Stage: progress.StageFailed, Message: "all strategies exhausted"})
	return false
}

func (c *Chain) attempt(ctx context.Context, s strategy.Strategy, at *strategy.Attempt) bool {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	return s.Fetch(ctx, at)
}

// writeMarker leaves a human-readable record of the failed download in
// the download directory. The marker's presence is what flips the
// video's status to failed.
func (c *Chain) writeMarker(at *strategy.Attempt, skipped, failed []string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Download failed after exhausting all methods.\n\n")
	fmt.Fprintf(&b, "URL: %s\n", at.URL)
	fmt.Fprintf(&b, "Video ID: %s\n", at.ID)
	if at.Meta != nil {
		fmt.Fprintf(&b, "Title: %s\n", at.Meta.Title)
		fmt.Fprintf(&b, "Channel: %s\n", at.Meta.Channel)
	}
	b.WriteString("\nMethods tried:\n")
	for _, name := range failed {
		fmt.Fprintf(&b, "  - %s: failed\n", name)
	}
	for _, name := range skipped {
		fmt.Fprintf(&b, "  - %s: skipped (precondition not met)\n", name)
	}
	b.WriteString("\nPossible remedies:\n")
	b.WriteString("  - Export a fresh cookies.txt from a logged-in browser session\n")
	b.WriteString("  - Install or update the yt-dlp binary\n")
	b.WriteString("  - Retry later; the video may be temporarily restricted\n")

	if err := os.WriteFile(at.Target.ErrorPath(), []byte(b.String()), 0o644); err != nil {
		c.logf("download %s: error marker write failed: %v", at.ID, err)
	}
}

func (c *Chain) report(ev progress.Event) {
	if c.Reporter != nil {
		c.Reporter.Report(ev)
	}
}

func (c *Chain) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}
