// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults.
const (
	DefaultPort          = 8080
	DefaultDownloadDir   = "downloads"
	DefaultCookieFile    = "cookies.txt"
	DefaultMaxConcurrent = 3
)

// Config holds everything the service needs at startup.
type Config struct {
	// Port the HTTP server listens on.
	Port int
	// APIKey is the YouTube Data API v3 key used for metadata lookups.
	APIKey string
	// DownloadDir stores artifacts, markers, and notes.
	DownloadDir string
	// CookieFile is a Netscape-format cookie export for yt-dlp.
	CookieFile string
	// StrategyTimeout bounds each strategy attempt. Zero disables it.
	StrategyTimeout time.Duration
	// MaxConcurrent caps simultaneous background downloads.
	MaxConcurrent int
}

// FromEnv reads TUBEFETCH_* variables, falling back to defaults for
// anything unset. Malformed numeric values are errors, not silent
// defaults.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:          DefaultPort,
		APIKey:        os.Getenv("TUBEFETCH_API_KEY"),
		DownloadDir:   DefaultDownloadDir,
		CookieFile:    DefaultCookieFile,
		MaxConcurrent: DefaultMaxConcurrent,
	}

	if v := os.Getenv("TUBEFETCH_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid TUBEFETCH_PORT %q", v)
		}
		cfg.Port = port
	}
	if v := os.Getenv("TUBEFETCH_DOWNLOAD_DIR"); v != "" {
		cfg.DownloadDir = v
	}
	if v := os.Getenv("TUBEFETCH_COOKIE_FILE"); v != "" {
		cfg.CookieFile = v
	}
	if v := os.Getenv("TUBEFETCH_STRATEGY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("invalid TUBEFETCH_STRATEGY_TIMEOUT %q", v)
		}
		cfg.StrategyTimeout = d
	}
	if v := os.Getenv("TUBEFETCH_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid TUBEFETCH_MAX_CONCURRENT %q", v)
		}
		cfg.MaxConcurrent = n
	}

	return cfg, nil
}

// Addr is the listen address derived from Port.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
