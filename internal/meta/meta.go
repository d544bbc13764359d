// Package meta looks up video metadata through the Data API v3 videos
// endpoint. It is a thin consumer of an external service: one
// authenticated GET per request, nothing cached.
package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/famomatic/tubefetch/internal/videoid"
)

// ErrNotFound indicates the lookup returned no items for the identifier.
var ErrNotFound = errors.New("video not found")

// Video is the metadata the rest of the system consumes. Counts stay
// strings: they are passed through from the source untouched.
type Video struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	ViewCount string `json:"viewCount"`
	LikeCount string `json:"likeCount"`
	Thumbnail string `json:"thumbnail"`
}

// Client resolves an identifier to metadata.
type Client interface {
	Lookup(ctx context.Context, id videoid.ID) (*Video, error)
}

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// APIClient is the Data API implementation of Client.
type APIClient struct {
	HTTPClient *http.Client
	APIKey     string
	BaseURL    string // overridable for tests
}

// NewAPIClient returns a Client using the given credential.
func NewAPIClient(httpClient *http.Client, apiKey string) *APIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &APIClient{HTTPClient: httpClient, APIKey: apiKey}
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				High    thumbnail `json:"high"`
				Default thumbnail `json:"default"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
			LikeCount string `json:"likeCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type thumbnail struct {
	URL string `json:"url"`
}

// Lookup fetches snippet and statistics for id.
func (c *APIClient) Lookup(ctx context.Context, id videoid.ID) (*Video, error) {
	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	q := url.Values{}
	q.Set("part", "snippet,statistics")
	q.Set("id", id.String())
	q.Set("key", c.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/videos?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata request failed: status=%d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed videosResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("metadata decode failed: %w", err)
	}
	if len(parsed.Items) == 0 {
		return nil, ErrNotFound
	}

	item := parsed.Items[0]
	thumb := item.Snippet.Thumbnails.High.URL
	if thumb == "" {
		thumb = item.Snippet.Thumbnails.Default.URL
	}
	return &Video{
		ID:        item.ID,
		Title:     item.Snippet.Title,
		Channel:   item.Snippet.ChannelTitle,
		ViewCount: item.Statistics.ViewCount,
		LikeCount: item.Statistics.LikeCount,
		Thumbnail: thumb,
	}, nil
}
