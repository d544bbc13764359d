package progress

import (
	"bytes"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type captureSink struct {
	events []Event
}

func (c *captureSink) Publish(ev Event) { c.events = append(c.events, ev) }

func TestReporterThrottlesDownloadingLines(t *testing.T) {
	var buf bytes.Buffer
	sink := &captureSink{}
	r := NewReporter(log.New(&buf, "", 0), sink, time.Hour)

	for i := 0; i < 5; i++ {
		r.Report(Event{VideoID: "dQw4w9WgXcQ", Strategy: "direct", Stage: StageDownloading, Bytes: int64(i)})
	}

	if got := strings.Count(buf.String(), "\n"); got != 1 {
		t.Fatalf("logged %d downloading lines, want 1:\n%s", got, buf.String())
	}
	if len(sink.events) != 5 {
		t.Fatalf("sink received %d events, want all 5", len(sink.events))
	}
}

func TestReporterAlwaysLogsStageTransitions(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(log.New(&buf, "", 0), nil, time.Hour)

	r.Report(Event{VideoID: "dQw4w9WgXcQ", Stage: StageDownloading})
	r.Report(Event{VideoID: "dQw4w9WgXcQ", Stage: StageFinished})
	r.Report(Event{VideoID: "dQw4w9WgXcQ", Stage: StageFailed, Message: "all strategies exhausted"})

	out := buf.String()
	if !strings.Contains(out, StageFinished) || !strings.Contains(out, StageFailed) {
		t.Fatalf("terminal stages missing from log:\n%s", out)
	}
}

func TestMeterReportsByteCounts(t *testing.T) {
	sink := &captureSink{}
	r := NewReporter(log.New(io.Discard, "", 0), sink, time.Hour)

	var dst bytes.Buffer
	w := r.Meter(&dst, "dQw4w9WgXcQ", "direct", 10)
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("world")); err != nil {
		t.Fatal(err)
	}

	if dst.String() != "helloworld" {
		t.Fatalf("payload corrupted: %q", dst.String())
	}
	last := sink.events[len(sink.events)-1]
	if last.Bytes != 10 || last.Percent != 100 {
		t.Fatalf("final event = %+v, want bytes=10 percent=100", last)
	}
}

func TestHubBroadcast(t *testing.T) {
	h := NewHub()
	defer h.Close()

	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Registration happens during the upgrade handler, but the dial
	// returning does not guarantee the server side finished; poll.
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.Publish(Event{VideoID: "dQw4w9WgXcQ", Stage: StageStarted})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.VideoID != "dQw4w9WgXcQ" || got.Stage != StageStarted {
		t.Fatalf("got %+v", got)
	}
}

func TestHubPublishWithoutClientsDoesNotBlock(t *testing.T) {
	h := NewHub()
	defer h.Close()
	for i := 0; i < 200; i++ {
		h.Publish(Event{VideoID: "dQw4w9WgXcQ", Stage: StageDownloading, Bytes: int64(i)})
	}
}
