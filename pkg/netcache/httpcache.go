package netcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// Cache is a persistent HTTP cache for remote data files with
// ETag/Last-Modified revalidation.
type Cache struct {
	Dir    string
	Client *http.Client
	Logger *slog.Logger
	// Retries is the number of attempts for a full fetch.
	Retries int
	// Backoff is the delay before the second attempt; it doubles after
	// every failed attempt.
	Backoff time.Duration
}

// Entry is a cached response body.
type Entry struct {
	Path        string
	Filename    string
	ContentType string
	FromCache   bool
}

func New(dir string) *Cache {
	return &Cache{
		Dir:     dir,
		Client:  &http.Client{Timeout: time.Minute},
		Logger:  slog.Default(),
		Retries: 3,
		Backoff: time.Second,
	}
}

type meta struct {
	URL          string `yaml:"url"`
	ETag         string `yaml:"etag,omitempty"`
	LastModified string `yaml:"last_modified,omitempty"`
	Filename     string `yaml:"filename,omitempty"`
	ContentType  string `yaml:"content_type,omitempty"`
	DataFile     string `yaml:"data_file"`
}

func (m meta) entry(dir string, fromCache bool) Entry {
	return Entry{
		Path:        filepath.Join(dir, m.DataFile),
		Filename:    m.Filename,
		ContentType: m.ContentType,
		FromCache:   fromCache,
	}
}

// Get returns the cached body of url, revalidating it with a conditional
// request first. A cached copy is reused when revalidation fails.
func (c *Cache) Get(ctx context.Context, url string) (Entry, error) {
	key := hash(url)
	mpath := filepath.Join(c.Dir, key+".yaml")
	m, haveMeta := readMeta(mpath, url, c.Dir)

	if haveMeta {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return Entry{}, err
		}
		if m.ETag != "" {
			req.Header.Set("If-None-Match", m.ETag)
		}
		if m.LastModified != "" {
			req.Header.Set("If-Modified-Since", m.LastModified)
		}
		resp, err := c.Client.Do(req)
		if err == nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusNotModified {
				c.Logger.Debug("data not modified", "url", url)
				return m.entry(c.Dir, true), nil
			}
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return c.store(url, key, mpath, resp)
			}
			err = fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		c.Logger.Warn("revalidation failed, using cached copy", "url", url, "error", err)
		return m.entry(c.Dir, true), nil
	}

	var lastErr error
	backoff := c.Backoff
	for attempt := 0; attempt < max(c.Retries, 1); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Entry{}, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return Entry{}, err
		}
		resp, err := c.Client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			e, err := c.store(url, key, mpath, resp)
			resp.Body.Close()
			return e, err
		}
		resp.Body.Close()
		lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
		// client errors will not go away on retry
		if resp.StatusCode < 500 {
			break
		}
	}
	return Entry{}, fmt.Errorf("fetching %s: %w", url, lastErr)
}

func (c *Cache) store(url, key, mpath string, resp *http.Response) (Entry, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Entry{}, fmt.Errorf("reading %s: %w", url, err)
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return Entry{}, err
	}
	m := meta{
		URL:          url,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		Filename:     contentFilename(resp),
		ContentType:  resp.Header.Get("Content-Type"),
		DataFile:     key + ".data",
	}
	if err := atomic.WriteFile(filepath.Join(c.Dir, m.DataFile), bytes.NewReader(body)); err != nil {
		return Entry{}, fmt.Errorf("caching %s: %w", url, err)
	}
	if err := writeMeta(mpath, m); err != nil {
		return Entry{}, err
	}
	c.Logger.Debug("data downloaded", "url", url, "size", humanize.Bytes(uint64(len(body))))
	return m.entry(c.Dir, false), nil
}

func readMeta(mpath, url, dir string) (meta, bool) {
	var m meta
	b, err := os.ReadFile(mpath)
	if err != nil || yaml.Unmarshal(b, &m) != nil {
		return m, false
	}
	if m.URL != url || m.DataFile == "" || !fileExists(filepath.Join(dir, m.DataFile)) {
		return m, false
	}
	return m, true
}

func writeMeta(p string, m meta) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return atomic.WriteFile(p, bytes.NewReader(b))
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// contentFilename derives a file name from the headers or the URL path.
func contentFilename(resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if i := strings.Index(cd, "filename="); i >= 0 {
			if v := strings.Trim(cd[i+9:], "\"'"); v != "" {
				return v
			}
		}
	}
	p := resp.Request.URL.Path
	if p == "" || strings.HasSuffix(p, "/") {
		return "download"
	}
	return path.Base(p)
}
