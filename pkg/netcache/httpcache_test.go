package netcache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetRevalidates(t *testing.T) {
	var hits, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "application/yaml")
		w.Write([]byte("name: spell\n"))
	}))
	defer srv.Close()

	c := New(t.TempDir())
	ctx := context.Background()
	first, err := c.Get(ctx, srv.URL+"/data/spells.yaml")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first.FromCache || first.Filename != "spells.yaml" || first.ContentType != "application/yaml" {
		t.Errorf("first fetch: %+v", first)
	}
	body, err := os.ReadFile(first.Path)
	if err != nil || string(body) != "name: spell\n" {
		t.Fatalf("cached body = %q, %v", body, err)
	}

	second, err := c.Get(ctx, srv.URL+"/data/spells.yaml")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !second.FromCache || second.Path != first.Path || second.Filename != "spells.yaml" {
		t.Errorf("second fetch: %+v", second)
	}
	if hits.Load() != 2 || notModified.Load() != 1 {
		t.Errorf("hits = %d, not modified = %d", hits.Load(), notModified.Load())
	}
}

func TestGetFallsBackToCachedCopy(t *testing.T) {
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"a": 1}`))
	}))
	defer srv.Close()

	c := New(t.TempDir())
	if _, err := c.Get(context.Background(), srv.URL+"/a.json"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	down.Store(true)
	e, err := c.Get(context.Background(), srv.URL+"/a.json")
	if err != nil {
		t.Fatalf("Get with server down: %v", err)
	}
	if !e.FromCache {
		t.Errorf("expected cached copy, got %+v", e)
	}
}

func TestGetErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	c := New(t.TempDir())
	c.Backoff = time.Millisecond
	if _, err := c.Get(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("404 should fail")
	}
	if hits.Load() != 1 {
		t.Errorf("404 retried: %d hits", hits.Load())
	}

	hits.Store(0)
	if _, err := c.Get(context.Background(), srv.URL+"/flaky"); err == nil {
		t.Error("502 should fail")
	}
	if hits.Load() != 3 {
		t.Errorf("5xx attempts = %d, want 3", hits.Load())
	}
}
