package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/famomatic/tubefetch/internal/config"
	"github.com/famomatic/tubefetch/internal/meta"
	"github.com/famomatic/tubefetch/internal/strategy"
	"github.com/famomatic/tubefetch/internal/videoid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testID = "dQw4w9WgXcQ"

type fakeMeta struct {
	video *meta.Video
	err   error
}

func (f *fakeMeta) Lookup(ctx context.Context, id videoid.ID) (*meta.Video, error) {
	if f.err != nil {
		return nil, f.err
	}
	v := *f.video
	v.ID = id.String()
	return &v, nil
}

type fakeChain struct {
	mu       sync.Mutex
	attempts []*strategy.Attempt
	result   bool
	done     chan struct{}
}

func (f *fakeChain) Run(ctx context.Context, at *strategy.Attempt) bool {
	f.mu.Lock()
	f.attempts = append(f.attempts, at)
	f.mu.Unlock()
	if f.done != nil {
		close(f.done)
	}
	return f.result
}

func newTestServer(t *testing.T, m meta.Client, chain Downloader) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		Port:          8080,
		APIKey:        "test-key",
		DownloadDir:   dir,
		CookieFile:    filepath.Join(dir, "cookies.txt"),
		MaxConcurrent: 2,
	}
	s := New(cfg, m, chain, nil, nil)
	s.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	return s, dir
}

func postDownload(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestDownloadRejectsUnrecognizableURL(t *testing.T) {
	s, _ := newTestServer(t, &fakeMeta{}, &fakeChain{})

	for _, body := range []string{
		`{"url":"https://www.youtube.com/watch?v=tooshort"}`,
		`{"url":"not a url"}`,
		`{"url":""}`,
		`not json`,
	} {
		w := postDownload(t, s, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
		if !strings.Contains(w.Body.String(), "Invalid YouTube URL") {
			t.Errorf("body %q: response = %s", body, w.Body.String())
		}
	}
}

func TestDownloadVideoNotFound(t *testing.T) {
	s, _ := newTestServer(t, &fakeMeta{err: meta.ErrNotFound}, &fakeChain{})

	w := postDownload(t, s, `{"url":"https://www.youtube.com/watch?v=`+testID+`"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", w.Code, w.Body.String())
	}
}

func TestDownloadMissingAPIKey(t *testing.T) {
	s, _ := newTestServer(t, &fakeMeta{}, &fakeChain{})
	s.cfg.APIKey = ""

	w := postDownload(t, s, `{"url":"https://www.youtube.com/watch?v=`+testID+`"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500: %s", w.Code, w.Body.String())
	}
}

func TestDownloadMetadataFailure(t *testing.T) {
	s, _ := newTestServer(t, &fakeMeta{err: errors.New("quota exceeded")}, &fakeChain{})

	w := postDownload(t, s, `{"url":"https://www.youtube.com/watch?v=`+testID+`"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500: %s", w.Code, w.Body.String())
	}
}

func TestDownloadAcceptedAndDetached(t *testing.T) {
	chain := &fakeChain{result: true, done: make(chan struct{})}
	m := &fakeMeta{video: &meta.Video{Title: "Test Video", Channel: "Test Channel"}}
	s, _ := newTestServer(t, m, chain)

	w := postDownload(t, s, `{"url":"https://www.youtube.com/watch?v=`+testID+`"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}

	var resp struct {
		VideoDetails meta.Video `json:"videoDetails"`
		DownloadURL  string     `json:"downloadUrl"`
		UsingCookies bool       `json:"usingCookies"`
		UsingYtDlp   bool       `json:"usingYtDlp"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.DownloadURL != "/downloads/Test_Video-dQw4w9WgXcQ.mp4" {
		t.Errorf("downloadUrl = %q", resp.DownloadURL)
	}
	if resp.VideoDetails.Title != "Test Video" {
		t.Errorf("videoDetails = %+v", resp.VideoDetails)
	}
	if resp.UsingCookies || resp.UsingYtDlp {
		t.Error("cookie flags set without a cookie file")
	}

	select {
	case <-chain.done:
	case <-time.After(2 * time.Second):
		t.Fatal("background download never ran")
	}
	chain.mu.Lock()
	defer chain.mu.Unlock()
	if len(chain.attempts) != 1 || chain.attempts[0].ID.String() != testID {
		t.Fatalf("attempts = %+v", chain.attempts)
	}
}

func TestDownloadCookieFlags(t *testing.T) {
	m := &fakeMeta{video: &meta.Video{Title: "Test Video"}}
	chain := &fakeChain{done: make(chan struct{})}
	s, _ := newTestServer(t, m, chain)

	if err := os.WriteFile(s.cfg.CookieFile, []byte("# Netscape HTTP Cookie File\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s.lookPath = func(string) (string, error) { return "/usr/bin/yt-dlp", nil }

	w := postDownload(t, s, `{"url":"https://www.youtube.com/watch?v=`+testID+`"}`)
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["usingCookies"] != true || resp["usingYtDlp"] != true {
		t.Fatalf("flags = %v / %v", resp["usingCookies"], resp["usingYtDlp"])
	}
	<-chain.done
}

func TestDownloadAlreadyCompleted(t *testing.T) {
	m := &fakeMeta{video: &meta.Video{Title: "Test Video"}}
	chain := &fakeChain{}
	s, dir := newTestServer(t, m, chain)

	name := "Test_Video-" + testID + ".mp4"
	if err := os.WriteFile(filepath.Join(dir, name), []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := postDownload(t, s, `{"url":"https://www.youtube.com/watch?v=`+testID+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Already downloaded") {
		t.Fatalf("response = %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "/downloads/"+name) {
		t.Fatalf("response = %s", w.Body.String())
	}

	// No background work was spawned; give any stray goroutine a beat.
	time.Sleep(50 * time.Millisecond)
	chain.mu.Lock()
	defer chain.mu.Unlock()
	if len(chain.attempts) != 0 {
		t.Fatal("download re-attempted for an existing artifact")
	}
}

type blockingChain struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingChain) Run(ctx context.Context, at *strategy.Attempt) bool {
	b.started <- struct{}{}
	<-b.release
	return true
}

func TestWorkerGateBoundsConcurrentRuns(t *testing.T) {
	chain := &blockingChain{started: make(chan struct{}, 2), release: make(chan struct{})}
	m := &fakeMeta{video: &meta.Video{Title: "Test Video"}}

	dir := t.TempDir()
	cfg := config.Config{
		APIKey:        "test-key",
		DownloadDir:   dir,
		CookieFile:    filepath.Join(dir, "cookies.txt"),
		MaxConcurrent: 1,
	}
	s := New(cfg, m, chain, nil, nil)
	s.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	for i := 0; i < 2; i++ {
		if w := postDownload(t, s, `{"url":"https://www.youtube.com/watch?v=`+testID+`"}`); w.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
		}
	}

	select {
	case <-chain.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never started")
	}

	// The gate admits one run; the second must wait for the release.
	select {
	case <-chain.started:
		t.Fatal("second run started while the gate was held")
	case <-time.After(100 * time.Millisecond):
	}

	close(chain.release)
	select {
	case <-chain.started:
	case <-time.After(2 * time.Second):
		t.Fatal("second run never started after the gate was released")
	}
}

func TestStatusEndpoint(t *testing.T) {
	s, dir := newTestServer(t, &fakeMeta{}, &fakeChain{})
	if err := os.WriteFile(filepath.Join(dir, "Test_Video-"+testID+".mp4"), []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ERROR-Bad_Video-jNQXAC9IVRw.txt"), []byte("marker"), 0o644); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Downloads     []map[string]any `json:"downloads"`
		TotalFiles    int              `json:"totalFiles"`
		TotalSize     int64            `json:"totalSize"`
		CookiesStatus map[string]any   `json:"cookiesStatus"`
		Stats         struct {
			SuccessCount int `json:"successCount"`
			ErrorCount   int `json:"errorCount"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Downloads) != 2 {
		t.Errorf("downloads = %d, want 2", len(resp.Downloads))
	}
	if resp.Stats.SuccessCount != 1 || resp.Stats.ErrorCount != 1 {
		t.Errorf("stats = %+v", resp.Stats)
	}
	if resp.TotalFiles != 2 || resp.TotalSize != int64(len("video")+len("marker")) {
		t.Errorf("totals = %d files / %d bytes", resp.TotalFiles, resp.TotalSize)
	}
	if resp.CookiesStatus["exists"] != false {
		t.Errorf("cookiesStatus = %v", resp.CookiesStatus)
	}
}

func TestCookiesEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &fakeMeta{}, &fakeChain{})

	req := httptest.NewRequest(http.MethodGet, "/api/cookies", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["exists"] != false {
		t.Fatalf("exists = %v, want false", resp["exists"])
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, &fakeMeta{}, &fakeChain{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	s, _ := newTestServer(t, &fakeMeta{}, &fakeChain{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("no request id assigned")
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "caller-chosen")
	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "caller-chosen" {
		t.Fatalf("request id = %q, want caller-chosen", got)
	}
}
