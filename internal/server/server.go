// Package server exposes the download service over HTTP.
package server

import (
	"context"
	"log"
	"net/http"
	"os/exec"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/famomatic/tubefetch/internal/config"
	"github.com/famomatic/tubefetch/internal/cookies"
	"github.com/famomatic/tubefetch/internal/meta"
	"github.com/famomatic/tubefetch/internal/progress"
	"github.com/famomatic/tubefetch/internal/registry"
	"github.com/famomatic/tubefetch/internal/strategy"
)

// Downloader runs one acquisition attempt to completion.
type Downloader interface {
	Run(ctx context.Context, at *strategy.Attempt) bool
}

// Server wires the HTTP surface to the download machinery.
type Server struct {
	cfg    config.Config
	meta   meta.Client
	reg    *registry.Registry
	chain  Downloader
	hub    *progress.Hub
	logger *log.Logger

	// gate bounds concurrent background downloads.
	gate chan struct{}

	// lookPath is swapped in tests.
	lookPath func(string) (string, error)
}

// New builds a Server. hub may be nil to disable the push feed.
func New(cfg config.Config, metaClient meta.Client, chain Downloader, hub *progress.Hub, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	max := cfg.MaxConcurrent
	if max <= 0 {
		max = config.DefaultMaxConcurrent
	}
	return &Server{
		cfg:      cfg,
		meta:     metaClient,
		reg:      &registry.Registry{Dir: cfg.DownloadDir},
		chain:    chain,
		hub:      hub,
		logger:   logger,
		gate:     make(chan struct{}, max),
		lookPath: exec.LookPath,
	}
}

// Router assembles the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.assignRequestID())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		api.POST("/download", s.handleDownload)
		api.GET("/status", s.handleStatus)
		api.GET("/cookies", s.handleCookies)
	}

	r.Static("/downloads", s.cfg.DownloadDir)
	if s.hub != nil {
		r.GET("/ws", gin.WrapH(s.hub))
	}
	r.GET("/healthz", s.handleHealth)

	return r
}

// assignRequestID tags every request so log lines from a detached
// download can be tied back to the request that spawned it.
func (s *Server) assignRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// usingCookies reports whether a usable cookie file is configured.
func (s *Server) usingCookies() bool {
	return cookies.Present(s.cfg.CookieFile)
}

// usingYtDlp reports whether the first strategy will actually run.
func (s *Server) usingYtDlp() bool {
	if !s.usingCookies() {
		return false
	}
	_, err := s.lookPath("yt-dlp")
	return err == nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "activeDownloads": len(s.gate)})
}
