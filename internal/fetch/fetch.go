// SPDX-License-Identifier: MIT

// Package fetch retrieves playlist documents over HTTP or from disk, with
// retry, a body size cap and TTL caching of fetched bodies.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/zaptv/zaptv/internal/cache"
	"github.com/zaptv/zaptv/internal/log"
	"github.com/zaptv/zaptv/internal/metrics"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "zaptv/1.0"
	defaultRetries   = 2
	defaultCacheTTL  = 5 * time.Minute
	// defaultMaxBody caps playlist documents. Large provider playlists run
	// tens of megabytes; 64MB leaves headroom without inviting abuse.
	defaultMaxBody = 64 * 1024 * 1024
)

// Options configures a Fetcher.
type Options struct {
	Client    *http.Client
	UserAgent string
	Retries   int // extra attempts after the first failure
	MaxBody   int64
	Cache     cache.Cache // nil disables caching
	CacheTTL  time.Duration
	Logger    *zerolog.Logger
}

// Fetcher loads playlist bodies. Safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	userAgent string
	retries   int
	maxBody   int64
	cache     cache.Cache
	cacheTTL  time.Duration
	logger    zerolog.Logger
}

func New(opts Options) *Fetcher {
	f := &Fetcher{
		client:    opts.Client,
		userAgent: opts.UserAgent,
		retries:   opts.Retries,
		maxBody:   opts.MaxBody,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		logger:    log.WithComponent("fetch"),
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: defaultTimeout}
	}
	if f.userAgent == "" {
		f.userAgent = defaultUserAgent
	}
	if f.retries < 0 {
		f.retries = 0
	} else if opts.Retries == 0 {
		f.retries = defaultRetries
	}
	if f.maxBody <= 0 {
		f.maxBody = defaultMaxBody
	}
	if f.cache == nil {
		f.cache = cache.NewNoOp()
	}
	if f.cacheTTL <= 0 {
		f.cacheTTL = defaultCacheTTL
	}
	if opts.Logger != nil {
		f.logger = *opts.Logger
	}
	return f
}

// Playlist fetches the playlist at url, serving from cache when fresh.
// Failures carry playlist context in the message so they classify onto the
// PLAYLIST error kind.
func (f *Fetcher) Playlist(ctx context.Context, url string) ([]byte, error) {
	key := "playlist:" + url
	if body, ok := f.cache.Get(key); ok {
		metrics.IncPlaylistCache(true)
		f.logger.Debug().
			Str(log.FieldEvent, "fetch.cache_hit").
			Str(log.FieldPlaylistURL, url).
			Msg("serving cached playlist")
		return body, nil
	}
	metrics.IncPlaylistCache(false)

	start := time.Now()
	body, err := f.fetchWithRetry(ctx, url)
	metrics.ObservePlaylistFetch(time.Since(start).Seconds())
	if err != nil {
		metrics.IncPlaylistRefresh(false)
		return nil, err
	}
	metrics.IncPlaylistRefresh(true)

	f.cache.Set(key, body, f.cacheTTL)
	f.logger.Info().
		Str(log.FieldEvent, "fetch.playlist").
		Str(log.FieldPlaylistURL, url).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("playlist fetched")
	return body, nil
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt*500) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("playlist fetch canceled: %w", ctx.Err())
			}
		}

		body, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		f.logger.Warn().Err(err).
			Str(log.FieldEvent, "fetch.retry").
			Str(log.FieldPlaylistURL, url).
			Int("attempt", attempt+1).
			Msg("playlist fetch attempt failed")
	}
	return nil, fmt.Errorf("playlist fetch failed after %d attempts: %w", f.retries+1, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("playlist request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("playlist fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("playlist fetch: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("playlist read: %w", err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("playlist exceeds %d byte limit", f.maxBody)
	}
	return body, nil
}

// PlaylistFile loads a playlist from disk, size-capped like the HTTP path.
func (f *Fetcher) PlaylistFile(path string) ([]byte, error) {
	path = filepath.Clean(path)
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("playlist file: %w", err)
	}
	if fi.Size() > f.maxBody {
		return nil, fmt.Errorf("playlist file exceeds %d byte limit", f.maxBody)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("playlist file: %w", err)
	}
	f.logger.Info().
		Str(log.FieldEvent, "fetch.playlist_file").
		Str(log.FieldPlaylistPath, path).
		Int("bytes", len(body)).
		Msg("playlist loaded from disk")
	return body, nil
}

// Invalidate drops the cached body for url.
func (f *Fetcher) Invalidate(url string) {
	f.cache.Delete("playlist:" + url)
}
