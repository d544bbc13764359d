package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/famomatic/tubefetch/internal/config"
	"github.com/famomatic/tubefetch/internal/cookies"
	"github.com/famomatic/tubefetch/internal/meta"
	"github.com/famomatic/tubefetch/internal/orchestrator"
	"github.com/famomatic/tubefetch/internal/player"
	"github.com/famomatic/tubefetch/internal/progress"
	"github.com/famomatic/tubefetch/internal/server"
	"github.com/famomatic/tubefetch/internal/strategy"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		port       = flag.Int("port", cfg.Port, "HTTP listen port")
		dir        = flag.String("dir", cfg.DownloadDir, "Download directory")
		cookieFile = flag.String("cookies", cfg.CookieFile, "Netscape cookie file for yt-dlp")
		apiKey     = flag.String("api-key", cfg.APIKey, "YouTube Data API key")
		timeout    = flag.Duration("strategy-timeout", cfg.StrategyTimeout, "Per-strategy timeout (0 = unbounded)")
	)
	flag.Parse()

	cfg.Port = *port
	cfg.DownloadDir = *dir
	cfg.CookieFile = *cookieFile
	cfg.APIKey = *apiKey
	cfg.StrategyTimeout = *timeout

	if cfg.APIKey == "" {
		log.Fatal("a YouTube Data API key is required (TUBEFETCH_API_KEY or -api-key)")
	}
	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		log.Fatalf("download dir: %v", err)
	}

	// Fetch a managed yt-dlp binary if none is installed. The first
	// strategy degrades to skipped if this fails.
	if _, err := ytdlp.Install(context.Background(), nil); err != nil {
		log.Printf("yt-dlp install: %v", err)
	}

	logger := log.New(os.Stderr, "tubefetch ", log.LstdFlags)
	hub := progress.NewHub()
	defer hub.Close()
	reporter := progress.NewReporter(logger, hub, 2*time.Second)

	// The operator's session rides along on every plain-HTTP strategy,
	// not only on yt-dlp.
	var jar http.CookieJar
	if cookies.Present(cfg.CookieFile) {
		j, err := cookies.Jar(cfg.CookieFile)
		if err != nil {
			logger.Printf("cookie jar: %v", err)
		} else {
			jar = j
		}
	}

	chain := &orchestrator.Chain{
		Strategies: []strategy.Strategy{
			&strategy.YtDlp{CookieFile: cfg.CookieFile, Reporter: reporter, Logger: logger},
			&strategy.Library{Jar: jar, Reporter: reporter, Logger: logger},
			&strategy.Direct{Resolver: player.NewResolver(nil), Reporter: reporter, Logger: logger},
			&strategy.Embed{Jar: jar, Reporter: reporter, Logger: logger},
			&strategy.Audio{Jar: jar, Reporter: reporter, Logger: logger},
		},
		Timeout:  cfg.StrategyTimeout,
		Reporter: reporter,
		Logger:   logger,
	}

	srv := server.New(cfg, meta.NewAPIClient(nil, cfg.APIKey), chain, hub, logger)

	logger.Printf("listening on %s, downloads in %s", cfg.Addr(), cfg.DownloadDir)
	if err := srv.Router().Run(cfg.Addr()); err != nil {
		log.Fatalf("server: %v", err)
	}
}
