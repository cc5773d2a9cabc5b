package netcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Cache is a persistent HTTP cache for remote templates with
// ETag/Last-Modified revalidation.
type Cache struct {
	Dir    string
	Client *http.Client
	// Attempts is the number of tries for a full fetch.
	Attempts int
	// Backoff is the delay before the second attempt; it doubles after each
	// failure.
	Backoff time.Duration
}

// New returns a new Cache with a reasonable default HTTP client.
func New(dir string) *Cache {
	return &Cache{
		Dir:      dir,
		Client:   &http.Client{Timeout: 30 * time.Second},
		Attempts: 3,
		Backoff:  500 * time.Millisecond,
	}
}

type meta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	DataFile     string    `json:"data_file"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %s: HTTP %d", e.URL, e.Code)
}

// Get returns the body of url, revalidating a cached copy when there is one.
// If revalidation fails the cached copy is returned as is. fromCache reports
// whether the body came from disk.
func (c *Cache) Get(ctx context.Context, url string) (body []byte, fromCache bool, err error) {
	key := hash(url)
	mpath := filepath.Join(c.Dir, key+".json")
	dpath := filepath.Join(c.Dir, key+".data")

	m, haveMeta := readMeta(mpath, url)
	if haveMeta && fileExists(dpath) {
		body, fresh, err := c.revalidate(ctx, url, m, mpath, dpath)
		if err == nil {
			return body, !fresh, nil
		}
		slog.Warn("revalidating cached template failed, using cached copy", "url", url, "error", err)
		b, rerr := os.ReadFile(dpath)
		if rerr == nil {
			return b, true, nil
		}
	}

	attempts := c.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := c.Backoff
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying fetch", "url", url, "attempt", attempt+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, false, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		var retry bool
		body, retry, lastErr = c.fetch(ctx, url, mpath, dpath)
		if lastErr == nil {
			return body, false, nil
		}
		if !retry {
			break
		}
	}
	return nil, false, lastErr
}

// revalidate issues a conditional GET. fresh is true when a new body was
// downloaded.
func (c *Cache) revalidate(ctx context.Context, url string, m meta, mpath, dpath string) (body []byte, fresh bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	if m.ETag != "" {
		req.Header.Set("If-None-Match", m.ETag)
	}
	if m.LastModified != "" {
		req.Header.Set("If-Modified-Since", m.LastModified)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		b, err := os.ReadFile(dpath)
		return b, false, err
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		b, err := c.store(resp, url, mpath, dpath)
		return b, true, err
	default:
		return nil, false, &StatusError{URL: url, Code: resp.StatusCode}
	}
}

// fetch performs an unconditional GET. retry reports whether the failure is
// worth another attempt (network errors and 5xx).
func (c *Cache) fetch(ctx context.Context, url, mpath, dpath string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode >= 500, &StatusError{URL: url, Code: resp.StatusCode}
	}
	body, err = c.store(resp, url, mpath, dpath)
	return body, false, err
}

func (c *Cache) store(resp *http.Response, url, mpath, dpath string) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if err := writeFile(dpath, body); err != nil {
		return nil, err
	}
	nm := meta{
		URL:          url,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		DataFile:     filepath.Base(dpath),
		FetchedAt:    time.Now().UTC(),
	}
	if err := writeMeta(mpath, nm); err != nil {
		return nil, err
	}
	slog.Debug("cached remote template", "url", url, "bytes", len(body), "etag", nm.ETag)
	return body, nil
}

func readMeta(path, url string) (meta, bool) {
	var m meta
	b, err := os.ReadFile(path)
	if err != nil {
		return m, false
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, false
	}
	return m, m.URL == url && m.DataFile != ""
}

// writeFile writes data to dst through a temporary file so readers never
// see a partial body.
func writeFile(dst string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

func writeMeta(path string, m meta) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, b)
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
