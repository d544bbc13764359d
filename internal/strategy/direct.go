package strategy

import (
	"context"
	"log"
	"net/http"

	"github.com/famomatic/tubefetch/internal/formats"
	"github.com/famomatic/tubefetch/internal/player"
	"github.com/famomatic/tubefetch/internal/progress"
)

// Direct speaks the innertube player API itself: resolve the player
// response, rank the offered formats, solve any signature challenge,
// and fetch the stream URL with plain HTTP. This is the path of last
// resort for full video+audio when both wrappers have failed.
type Direct struct {
	Resolver   *player.Resolver
	HTTPClient *http.Client
	Reporter   *progress.Reporter
	Logger     *log.Logger
}

func (s *Direct) Name() string { return "direct" }

func (s *Direct) Fetch(ctx context.Context, at *Attempt) bool {
	resolver := s.Resolver
	if resolver == nil {
		resolver = player.NewResolver(nil)
	}
	resp, err := resolver.Resolve(ctx, at.ID)
	if err != nil {
		s.logf("direct resolve failed for %s: %v", at.ID, err)
		return false
	}
	if !resp.PlayabilityStatus.IsOK() {
		s.logf("direct: %s not playable: %s", at.ID, resp.PlayabilityStatus.Status)
		return false
	}
	all := formats.FromPlayer(resp)
	best, ok := formats.BestMuxed(all)
	if !ok {
		s.logf("direct found no progressive format for %s", at.ID)
		return false
	}
	streamURL, err := resolver.StreamURL(ctx, at.ID, best.Raw)
	if err != nil {
		s.logf("direct cipher failed for %s: %v", at.ID, err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return false
	}
	res, err := s.httpClient(at).Do(req)
	if err != nil {
		s.logf("direct fetch failed for %s: %v", at.ID, err)
		return false
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		s.logf("direct fetch for %s returned %d", at.ID, res.StatusCode)
		return false
	}
	if !saveStream(at.Target.MediaPath(), res.Body, s.Reporter, at.ID, s.Name(), best.ContentLength) {
		s.logf("direct copy failed for %s", at.ID)
		return false
	}
	return fileReady(at.Target.MediaPath())
}

func (s *Direct) httpClient(at *Attempt) *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return browserClient(at.ID.WatchURL(), nil)
}

func (s *Direct) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}
