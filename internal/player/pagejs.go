package player

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync"

	"github.com/famomatic/tubefetch/internal/videoid"
)

var basejsPattern = regexp.MustCompile(`(/s/player/[A-Za-z0-9_-]+/[A-Za-z0-9._/-]*/base\.js)`)

// jsResolver locates and fetches the site's player JavaScript and keeps
// one Decipherer per player build.
type jsResolver struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string]*Decipherer // keyed by base.js path
}

func newJSResolver(client *http.Client) *jsResolver {
	return &jsResolver{client: client, cache: make(map[string]*Decipherer)}
}

func (j *jsResolver) decipherer(ctx context.Context, baseURL string, id videoid.ID) (*Decipherer, error) {
	path, err := j.playerPath(ctx, baseURL, id)
	if err != nil {
		return nil, err
	}

	j.mu.Lock()
	if d, ok := j.cache[path]; ok {
		j.mu.Unlock()
		return d, nil
	}
	j.mu.Unlock()

	body, err := j.fetch(ctx, baseURL+path)
	if err != nil {
		return nil, err
	}
	d := NewDecipherer(body)

	j.mu.Lock()
	j.cache[path] = d
	j.mu.Unlock()
	return d, nil
}

// playerPath extracts the current base.js path from the watch page.
func (j *jsResolver) playerPath(ctx context.Context, baseURL string, id videoid.ID) (string, error) {
	body, err := j.fetch(ctx, baseURL+"/watch?v="+id.String())
	if err != nil {
		return "", err
	}
	m := basejsPattern.FindStringSubmatch(body)
	if len(m) < 2 {
		return "", fmt.Errorf("player js url not found in watch page")
	}
	return m[1], nil
}

func (j *jsResolver) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", BrowserUserAgent)

	resp, err := j.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status=%d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
