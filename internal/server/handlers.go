package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/famomatic/tubefetch/internal/cookies"
	"github.com/famomatic/tubefetch/internal/meta"
	"github.com/famomatic/tubefetch/internal/registry"
	"github.com/famomatic/tubefetch/internal/strategy"
	"github.com/famomatic/tubefetch/internal/target"
	"github.com/famomatic/tubefetch/internal/videoid"
)

type downloadRequest struct {
	URL string `json:"url"`
	// Quality is accepted for forward compatibility; every strategy
	// currently picks the best available format itself.
	Quality string `json:"quality"`
}

// handleDownload validates the request, answers immediately, and runs
// the actual download in the background. The response tells the client
// where the artifact will appear, not whether it will.
func (s *Server) handleDownload(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid YouTube URL"})
		return
	}
	id, ok := videoid.Parse(req.URL)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid YouTube URL"})
		return
	}
	if s.cfg.APIKey == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "YouTube API key is not configured"})
		return
	}

	video, err := s.meta.Lookup(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, meta.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
			return
		}
		s.logger.Printf("request %s: metadata lookup for %s failed: %v", requestID(c), id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch video details"})
		return
	}

	if name, done := s.reg.Completed(id.String()); done {
		c.JSON(http.StatusOK, gin.H{
			"message":      "Already downloaded",
			"videoDetails": video,
			"downloadUrl":  "/downloads/" + name,
		})
		return
	}

	tgt := target.New(s.cfg.DownloadDir, video.Title, id)
	at := &strategy.Attempt{
		URL:    req.URL,
		ID:     id,
		Target: tgt,
		Meta:   video,
	}

	c.JSON(http.StatusAccepted, gin.H{
		"videoDetails": video,
		"downloadUrl":  "/downloads/" + tgt.MediaName(),
		"usingCookies": s.usingCookies(),
		"usingYtDlp":   s.usingYtDlp(),
	})
	c.Writer.Flush()

	reqID := requestID(c)
	go s.runDownload(reqID, at)
}

// runDownload executes the chain behind the worker gate. The request
// that spawned it is long gone, so the context is fresh.
func (s *Server) runDownload(reqID string, at *strategy.Attempt) {
	s.gate <- struct{}{}
	defer func() { <-s.gate }()

	s.logger.Printf("request %s: starting download %s", reqID, at.ID)
	if s.chain.Run(context.Background(), at) {
		s.logger.Printf("request %s: download %s completed", reqID, at.ID)
		return
	}
	s.logger.Printf("request %s: download %s failed", reqID, at.ID)
}

func (s *Server) handleStatus(c *gin.Context) {
	records, stats, err := s.reg.Scan()
	if err != nil {
		s.logger.Printf("request %s: status scan failed: %v", requestID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read download directory"})
		return
	}
	if records == nil {
		records = []registry.Record{}
	}
	c.JSON(http.StatusOK, gin.H{
		"downloads":     records,
		"totalFiles":    stats.TotalFiles,
		"totalSize":     stats.TotalSize,
		"cookiesStatus": cookies.Stat(s.cfg.CookieFile),
		"stats":         stats,
	})
}

func (s *Server) handleCookies(c *gin.Context) {
	c.JSON(http.StatusOK, cookies.Stat(s.cfg.CookieFile))
}

func requestID(c *gin.Context) string {
	return c.GetString("requestID")
}
