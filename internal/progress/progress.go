// Package progress carries the internal observability signal of a
// running download: rate-limited log lines and a push feed for
// connected frontends. Nothing here participates in the success
// contract.
package progress

import (
	"io"
	"log"
	"time"

	"golang.org/x/time/rate"
)

// Event is one progress observation.
type Event struct {
	VideoID  string  `json:"videoId"`
	Strategy string  `json:"strategy,omitempty"`
	Stage    string  `json:"stage"`
	Percent  float64 `json:"percent,omitempty"`
	Bytes    int64   `json:"bytes,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// Stages.
const (
	StageStarted     = "started"
	StageDownloading = "downloading"
	StageFinished    = "finished"
	StageFailed      = "failed"
)

// Sink receives every event, unthrottled.
type Sink interface {
	Publish(Event)
}

// Reporter fans events out to the log (throttled) and a Sink (not).
type Reporter struct {
	logger  *log.Logger
	limiter *rate.Limiter
	sink    Sink
}

// NewReporter builds a Reporter logging to logger, at most one
// downloading line per interval. sink may be nil.
func NewReporter(logger *log.Logger, sink Sink, interval time.Duration) *Reporter {
	if logger == nil {
		logger = log.Default()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Reporter{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		sink:    sink,
	}
}

// Report publishes ev. Stage transitions always log; the high-volume
// downloading stage logs only when the limiter allows.
func (r *Reporter) Report(ev Event) {
	if r.sink != nil {
		r.sink.Publish(ev)
	}
	if ev.Stage == StageDownloading && !r.limiter.Allow() {
		return
	}
	if ev.Percent > 0 {
		r.logger.Printf("download %s: stage=%s strategy=%s %.1f%% (%d bytes)",
			ev.VideoID, ev.Stage, ev.Strategy, ev.Percent, ev.Bytes)
		return
	}
	r.logger.Printf("download %s: stage=%s strategy=%s %s", ev.VideoID, ev.Stage, ev.Strategy, ev.Message)
}

// Meter wraps w and reports byte counts as they stream through.
func (r *Reporter) Meter(w io.Writer, videoID, strategy string, total int64) io.Writer {
	return &meter{r: r, w: w, videoID: videoID, strategy: strategy, total: total}
}

type meter struct {
	r        *Reporter
	w        io.Writer
	videoID  string
	strategy string
	total    int64
	written  int64
}

func (m *meter) Write(p []byte) (int, error) {
	n, err := m.w.Write(p)
	m.written += int64(n)
	ev := Event{
		VideoID:  m.videoID,
		Strategy: m.strategy,
		Stage:    StageDownloading,
		Bytes:    m.written,
	}
	if m.total > 0 {
		ev.Percent = float64(m.written) / float64(m.total) * 100
	}
	m.r.Report(ev)
	return n, err
}
