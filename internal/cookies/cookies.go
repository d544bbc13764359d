// Package cookies reads the external session-cookie file. The file is
// consumed, never written: the yt-dlp strategy passes its path through,
// and the status endpoint reports on it.
package cookies

import (
	"bufio"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/famomatic/tubefetch/internal/fsx"
)

// Status describes the cookie file as seen on disk right now.
type Status struct {
	Exists      bool      `json:"exists"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	LastUpdated time.Time `json:"lastUpdated"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Stat returns the current status of the cookie file at path.
func Stat(path string) Status {
	info, err := os.Stat(path)
	if err != nil {
		return Status{Exists: false, Path: path}
	}
	return Status{
		Exists:      true,
		Path:        path,
		Size:        info.Size(),
		LastUpdated: info.ModTime(),
		CreatedAt:   fsx.CreatedAt(info),
	}
}

// Present reports whether a non-empty cookie file exists at path.
func Present(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// ParseNetscape parses a Netscape cookies.txt stream.
// Format: domain flag path secure expiration name value
func ParseNetscape(r io.Reader) ([]*http.Cookie, error) {
	var out []*http.Cookie
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 7 {
			continue
		}
		expires, _ := strconv.ParseInt(parts[4], 10, 64)
		out = append(out, &http.Cookie{
			Domain:  parts[0],
			Path:    parts[2],
			Secure:  strings.EqualFold(parts[3], "TRUE"),
			Expires: time.Unix(expires, 0),
			Name:    parts[5],
			Value:   parts[6],
		})
	}
	return out, scanner.Err()
}

// LoadNetscape reads and parses the cookie file at path.
func LoadNetscape(path string) ([]*http.Cookie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseNetscape(f)
}

// Jar builds a cookie jar preloaded from the Netscape export at path,
// so plain HTTP clients ride the operator's session the same way
// yt-dlp does.
func Jar(path string) (http.CookieJar, error) {
	cs, err := LoadNetscape(path)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	byHost := make(map[string][]*http.Cookie)
	for _, c := range cs {
		host := strings.TrimPrefix(c.Domain, ".")
		byHost[host] = append(byHost[host], c)
	}
	for host, group := range byHost {
		jar.SetCookies(&url.URL{Scheme: "https", Host: host, Path: "/"}, group)
	}
	return jar, nil
}
