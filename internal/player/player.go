// Package player resolves playable stream URLs without an external
// tool: it queries the innertube /player endpoint as the desktop web
// client and, where streams are ciphered, recovers their URLs from the
// site's player JavaScript.
package player

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/famomatic/tubefetch/internal/videoid"
)

var (
	// ErrUnplayable indicates the player endpoint refused playback.
	ErrUnplayable = errors.New("video unplayable")

	// ErrCipherUnsolved indicates a ciphered stream URL could not be
	// recovered from the player JS.
	ErrCipherUnsolved = errors.New("cipher unsolved")
)

const (
	webClientName    = "WEB"
	webClientVersion = "2.20260114.08.00"

	// BrowserUserAgent is the desktop Chrome identity every outbound
	// request carries.
	BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Resolver queries the player endpoint and deciphers stream URLs.
type Resolver struct {
	HTTPClient *http.Client
	BaseURL    string // overridable for tests; default https://www.youtube.com

	js *jsResolver
}

// NewResolver returns a Resolver using httpClient for every fetch.
func NewResolver(httpClient *http.Client) *Resolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Resolver{
		HTTPClient: httpClient,
		js:         newJSResolver(httpClient),
	}
}

func (r *Resolver) base() string {
	if r.BaseURL != "" {
		return r.BaseURL
	}
	return "https://www.youtube.com"
}

type playerRequest struct {
	Context        requestContext `json:"context"`
	VideoID        string         `json:"videoId"`
	ContentCheckOk bool           `json:"contentCheckOk"`
	RacyCheckOk    bool           `json:"racyCheckOk"`
}

type requestContext struct {
	Client clientInfo `json:"client"`
}

type clientInfo struct {
	ClientName       string `json:"clientName"`
	ClientVersion    string `json:"clientVersion"`
	UserAgent        string `json:"userAgent"`
	AcceptLanguage   string `json:"hl"`
	TimeZone         string `json:"timeZone"`
	UtcOffsetMinutes int    `json:"utcOffsetMinutes"`
}

// Resolve fetches the player response for id as the web client.
func (r *Resolver) Resolve(ctx context.Context, id videoid.ID) (*Response, error) {
	body, err := json.Marshal(playerRequest{
		VideoID:        id.String(),
		ContentCheckOk: true,
		RacyCheckOk:    true,
		Context: requestContext{
			Client: clientInfo{
				ClientName:     webClientName,
				ClientVersion:  webClientVersion,
				UserAgent:      BrowserUserAgent,
				AcceptLanguage: "en",
				TimeZone:       "UTC",
			},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base()+"/youtubei/v1/player", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", BrowserUserAgent)
	req.Header.Set("Origin", r.base())
	req.Header.Set("Referer", r.base()+"/watch?v="+id.String())

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("player request failed: status=%d", resp.StatusCode)
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed Response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("player response decode failed: %w", err)
	}
	if !parsed.PlayabilityStatus.IsOK() {
		return nil, fmt.Errorf("%w: status=%s reason=%s",
			ErrUnplayable, parsed.PlayabilityStatus.Status, parsed.PlayabilityStatus.Reason)
	}
	return &parsed, nil
}

// StreamURL recovers the playable URL of f, deciphering signature and
// n-parameter where the stream demands it.
func (r *Resolver) StreamURL(ctx context.Context, id videoid.ID, f RawFormat) (string, error) {
	if f.URL != "" {
		return r.transformN(ctx, id, f.URL)
	}

	cipher := f.SignatureCipher
	if cipher == "" {
		cipher = f.Cipher
	}
	if cipher == "" {
		return "", ErrCipherUnsolved
	}

	params, err := url.ParseQuery(cipher)
	if err != nil {
		return "", ErrCipherUnsolved
	}
	rawURL := params.Get("url")
	if rawURL == "" {
		return "", ErrCipherUnsolved
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ErrCipherUnsolved
	}

	if s := params.Get("s"); s != "" {
		d, err := r.decipherer(ctx, id)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCipherUnsolved, err)
		}
		sig, err := d.DecipherSignature(s)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCipherUnsolved, err)
		}
		sp := params.Get("sp")
		if sp == "" {
			sp = "signature"
		}
		q := u.Query()
		q.Set(sp, sig)
		u.RawQuery = q.Encode()
	}

	return r.transformN(ctx, id, u.String())
}

// transformN rewrites the throttling n parameter when present. Failure
// keeps the original value: the stream usually still plays, throttled.
func (r *Resolver) transformN(ctx context.Context, id videoid.ID, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, nil
	}
	q := u.Query()
	n := q.Get("n")
	if n == "" {
		return rawURL, nil
	}
	d, err := r.decipherer(ctx, id)
	if err != nil {
		return rawURL, nil
	}
	decoded, err := d.DecipherN(n)
	if err != nil {
		return rawURL, nil
	}
	q.Set("n", decoded)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (r *Resolver) decipherer(ctx context.Context, id videoid.ID) (*Decipherer, error) {
	return r.js.decipherer(ctx, r.base(), id)
}
