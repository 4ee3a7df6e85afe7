// SPDX-License-Identifier: MIT

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zaptv/zaptv/internal/cache"
	"github.com/zaptv/zaptv/internal/playback"
)

const samplePlaylist = "#EXTM3U\n#EXTINF:-1,News\nhttp://example.com/news\n"

func TestPlaylistFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != defaultUserAgent {
			t.Errorf("user agent = %q", got)
		}
		w.Write([]byte(samplePlaylist))
	}))
	defer srv.Close()

	f := New(Options{})
	body, err := f.Playlist(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != samplePlaylist {
		t.Fatalf("body = %q", body)
	}
}

func TestPlaylistRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(samplePlaylist))
	}))
	defer srv.Close()

	f := New(Options{Retries: 2})
	body, err := f.Playlist(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != samplePlaylist {
		t.Fatalf("body = %q", body)
	}
	if calls.Load() != 3 {
		t.Fatalf("server saw %d calls, want 3", calls.Load())
	}
}

func TestPlaylistFailureClassifiesAsPlaylist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Options{Retries: 1})
	_, err := f.Playlist(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := playback.Classify(err); got != playback.KindPlaylist {
		t.Fatalf("error %v classified as %v, want PLAYLIST", err, got)
	}
}

func TestPlaylistServedFromCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(samplePlaylist))
	}))
	defer srv.Close()

	f := New(Options{Cache: cache.NewMemory(0), CacheTTL: time.Minute})
	for i := 0; i < 3; i++ {
		if _, err := f.Playlist(context.Background(), srv.URL); err != nil {
			t.Fatal(err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("server saw %d calls, want 1", calls.Load())
	}

	f.Invalidate(srv.URL)
	if _, err := f.Playlist(context.Background(), srv.URL); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Fatalf("server saw %d calls after invalidate, want 2", calls.Load())
	}
}

func TestPlaylistBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	f := New(Options{MaxBody: 1024, Retries: -1})
	if _, err := f.Playlist(context.Background(), srv.URL); err == nil {
		t.Fatal("oversized body accepted")
	}
}

func TestPlaylistFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.m3u")
	if err := os.WriteFile(path, []byte(samplePlaylist), 0o600); err != nil {
		t.Fatal(err)
	}

	f := New(Options{})
	body, err := f.PlaylistFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != samplePlaylist {
		t.Fatalf("body = %q", body)
	}

	if _, err := f.PlaylistFile(filepath.Join(t.TempDir(), "missing.m3u")); err == nil {
		t.Fatal("missing file accepted")
	}
}
