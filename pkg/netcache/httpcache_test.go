package netcache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	c := New(t.TempDir())
	c.Backoff = time.Millisecond
	return c
}

func TestGetCachesAndRevalidates(t *testing.T) {
	var hits, notModified int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			atomic.AddInt32(&notModified, 1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("Hello {{ name }}"))
	}))
	defer srv.Close()

	c := newTestCache(t)
	body, fromCache, err := c.Get(context.Background(), srv.URL+"/greeting.tpl")
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if fromCache || string(body) != "Hello {{ name }}" {
		t.Fatalf("first get: %q fromCache=%v", body, fromCache)
	}

	body, fromCache, err = c.Get(context.Background(), srv.URL+"/greeting.tpl")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if !fromCache || string(body) != "Hello {{ name }}" {
		t.Fatalf("second get: %q fromCache=%v", body, fromCache)
	}
	if hits != 2 || notModified != 1 {
		t.Fatalf("hits=%d notModified=%d", hits, notModified)
	}
}

func TestGetUpdatesChangedBody(t *testing.T) {
	var version atomic.Int32
	version.Store(1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if version.Load() == 1 {
			w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
			_, _ = w.Write([]byte("one"))
			return
		}
		if r.Header.Get("If-Modified-Since") == "" {
			t.Errorf("expected conditional request")
		}
		_, _ = w.Write([]byte("two"))
	}))
	defer srv.Close()

	c := newTestCache(t)
	if _, _, err := c.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("get: %v", err)
	}
	version.Store(2)
	body, fromCache, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fromCache || string(body) != "two" {
		t.Fatalf("got %q fromCache=%v", body, fromCache)
	}
}

func TestGetFallsBackToStaleCopy(t *testing.T) {
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("ETag", `"x"`)
		_, _ = w.Write([]byte("cached"))
	}))
	defer srv.Close()

	c := newTestCache(t)
	if _, _, err := c.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("get: %v", err)
	}
	down.Store(true)
	body, fromCache, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("stale get: %v", err)
	}
	if !fromCache || string(body) != "cached" {
		t.Fatalf("got %q fromCache=%v", body, fromCache)
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("third time"))
	}))
	defer srv.Close()

	body, _, err := newTestCache(t).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(body) != "third time" || hits != 3 {
		t.Fatalf("got %q after %d hits", body, hits)
	}
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, _, err := newTestCache(t).Get(context.Background(), srv.URL)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("expected 404 status error, got %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected a single attempt, got %d", hits)
	}
}
