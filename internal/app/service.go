// SPDX-License-Identifier: MIT

// Package app is the viewer core: it owns the loaded channel catalog and
// coordinates playlist loading, playback sessions, preferences and the
// program guide.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/zaptv/zaptv/internal/catalog"
	"github.com/zaptv/zaptv/internal/epg"
	"github.com/zaptv/zaptv/internal/fetch"
	"github.com/zaptv/zaptv/internal/log"
	"github.com/zaptv/zaptv/internal/m3u"
	"github.com/zaptv/zaptv/internal/metrics"
	"github.com/zaptv/zaptv/internal/playback"
	"github.com/zaptv/zaptv/internal/prefs"
)

// ErrNoPlaylist is returned by operations that need a loaded catalog.
var ErrNoPlaylist = errors.New("no playlist loaded")

// ErrChannelNotFound is returned when a channel id is not in the catalog.
var ErrChannelNotFound = errors.New("channel not found")

// Options wires a Service.
type Options struct {
	Fetcher *fetch.Fetcher
	Store   prefs.Store
	Player  playback.Player

	LoadingTimeout time.Duration
	ErrorTimeout   time.Duration
	Proxy          playback.ProxyPolicy

	Logger *zerolog.Logger
}

// Advance describes one automatic channel change triggered by a watchdog.
type Advance struct {
	From m3u.Channel `json:"from"`
	To   m3u.Channel `json:"to"`
	At   time.Time   `json:"at"`
}

// Service is the viewer core. All exported methods are safe for concurrent
// use.
type Service struct {
	mu       sync.RWMutex
	channels []m3u.Channel
	source   string // playlist URL or file path currently loaded
	fromURL  bool

	fetcher    *fetch.Fetcher
	store      prefs.Store
	controller *playback.Controller
	guide      atomic.Pointer[epg.Guide]
	logger     zerolog.Logger

	subMu sync.Mutex
	subs  []chan Advance
}

func New(opts Options) *Service {
	s := &Service{
		fetcher: opts.Fetcher,
		store:   opts.Store,
		logger:  log.WithComponent("app"),
	}
	if opts.Logger != nil {
		s.logger = *opts.Logger
	}
	if s.store == nil {
		s.store = prefs.NewMemoryStore()
	}
	s.controller = playback.NewController(opts.Player, playback.Options{
		LoadingTimeout: opts.LoadingTimeout,
		ErrorTimeout:   opts.ErrorTimeout,
		Proxy:          opts.Proxy,
		OnAdvance:      s.advanceFrom,
		Watcher:        prefs.NewWatcher(s.store),
	})
	return s
}

// LoadFromURL fetches, parses and installs the playlist at url, and records
// it in the custom-playlist history.
func (s *Service) LoadFromURL(ctx context.Context, url string) (int, error) {
	body, err := s.fetcher.Playlist(ctx, url)
	if err != nil {
		return 0, err
	}
	n, err := s.install(body, url, true)
	if err != nil {
		return 0, err
	}
	if err := s.store.TouchPlaylistURL(url); err != nil {
		s.logger.Warn().Err(err).
			Str(log.FieldEvent, "app.history_failed").
			Str(log.FieldPlaylistURL, url).
			Msg("playlist history update failed")
	}
	return n, nil
}

// LoadFromFile parses and installs a playlist from disk.
func (s *Service) LoadFromFile(path string) (int, error) {
	body, err := s.fetcher.PlaylistFile(path)
	if err != nil {
		return 0, err
	}
	return s.install(body, path, false)
}

// LoadFromReader installs an uploaded playlist document.
func (s *Service) LoadFromReader(r io.Reader) (int, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return 0, fmt.Errorf("playlist upload: %w", err)
	}
	return s.install(buf.Bytes(), "", false)
}

// Reload re-fetches the current playlist source, bypassing the cache.
func (s *Service) Reload(ctx context.Context) (int, error) {
	s.mu.RLock()
	source, fromURL := s.source, s.fromURL
	s.mu.RUnlock()

	if source == "" {
		return 0, ErrNoPlaylist
	}
	if fromURL {
		s.fetcher.Invalidate(source)
		return s.LoadFromURL(ctx, source)
	}
	return s.LoadFromFile(source)
}

func (s *Service) install(body []byte, source string, fromURL bool) (int, error) {
	channels := m3u.Parse(string(body))
	if len(channels) == 0 {
		return 0, errors.New("playlist contains no channels")
	}

	s.mu.Lock()
	s.channels = channels
	s.source = source
	s.fromURL = fromURL
	s.mu.Unlock()

	metrics.RecordChannelsParsed(len(channels))
	s.logger.Info().
		Str(log.FieldEvent, "app.playlist_loaded").
		Int(log.FieldChannelCount, len(channels)).
		Msg("playlist installed")
	return len(channels), nil
}

// Channels returns a copy of the full catalog.
func (s *Service) Channels() []m3u.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]m3u.Channel(nil), s.channels...)
}

// ChannelCount reports the catalog size. Satisfies health.CatalogSource.
func (s *Service) ChannelCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channels)
}

// ChannelByID finds a channel in the current catalog.
func (s *Service) ChannelByID(id int) (m3u.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.channels {
		if ch.ID == id {
			return ch, true
		}
	}
	return m3u.Channel{}, false
}

// Groups returns category names with their channel counts, sorted by name.
func (s *Service) Groups() map[string][]m3u.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return catalog.GroupByCategory(s.channels)
}

// Categories returns the sorted category names.
func (s *Service) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return catalog.Categories(s.channels)
}

// Search filters the catalog by query and optional group, then applies an
// optional final sort.
func (s *Service) Search(query, group string, sortBy catalog.SortKey) []m3u.Channel {
	s.mu.RLock()
	channels := s.channels
	s.mu.RUnlock()

	if group != "" {
		channels = catalog.FilterGroup(channels, group)
	}
	channels = catalog.Search(channels, query)
	if sortBy != "" {
		channels = catalog.Sort(channels, sortBy)
	}
	return channels
}

// RemoveChannel drops a channel from the working catalog. The removal lasts
// until the playlist is reloaded.
func (s *Service) RemoveChannel(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	trimmed := catalog.Remove(s.channels, id)
	if len(trimmed) == len(s.channels) {
		return fmt.Errorf("%w: %d", ErrChannelNotFound, id)
	}
	s.channels = trimmed
	return nil
}

// Select starts playback of the channel with the given id.
func (s *Service) Select(id int) (playback.Snapshot, error) {
	ch, ok := s.ChannelByID(id)
	if !ok {
		return playback.Snapshot{}, fmt.Errorf("%w: %d", ErrChannelNotFound, id)
	}
	return s.controller.Select(ch), nil
}

// Status reports the current playback session.
func (s *Service) Status() playback.Snapshot {
	return s.controller.Snapshot()
}

// Retry re-attempts the current channel after an error.
func (s *Service) Retry() (playback.Snapshot, error) {
	return s.controller.Retry()
}

// Stop tears down the playback session.
func (s *Service) Stop() {
	s.controller.Reset()
}

// Next switches to the next catalog channel, wrapping at the end. With no
// active session it selects the first channel.
func (s *Service) Next() (playback.Snapshot, error) {
	return s.step(catalog.Next)
}

// Prev switches to the previous catalog channel, wrapping at the start.
func (s *Service) Prev() (playback.Snapshot, error) {
	return s.step(catalog.Prev)
}

func (s *Service) step(move func([]m3u.Channel, int) (m3u.Channel, bool)) (playback.Snapshot, error) {
	s.mu.RLock()
	channels := s.channels
	s.mu.RUnlock()
	if len(channels) == 0 {
		return playback.Snapshot{}, ErrNoPlaylist
	}

	current := s.controller.Snapshot()
	if current.Channel == nil {
		return s.controller.Select(channels[0]), nil
	}
	target, ok := move(channels, current.Channel.ID)
	if !ok {
		target = channels[0]
	}
	return s.controller.Select(target), nil
}

// advanceFrom is the watchdog callback: move on to the next channel and
// notify subscribers.
func (s *Service) advanceFrom(from m3u.Channel) {
	s.mu.RLock()
	channels := s.channels
	s.mu.RUnlock()
	if len(channels) == 0 {
		return
	}

	next, ok := catalog.Next(channels, from.ID)
	if !ok {
		next = channels[0]
	}
	s.logger.Info().
		Str(log.FieldEvent, "app.auto_advance").
		Int("from_channel", from.ID).
		Int("to_channel", next.ID).
		Msg("advancing past stuck channel")
	s.controller.Select(next)
	s.notify(Advance{From: from, To: next, At: time.Now()})
}

// Subscribe returns a channel receiving automatic advance notifications.
// The returned cancel function must be called to release the subscription.
func (s *Service) Subscribe() (<-chan Advance, func()) {
	ch := make(chan Advance, 8)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub == ch {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

func (s *Service) notify(a Advance) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, sub := range s.subs {
		select {
		case sub <- a:
		default:
		}
	}
}

// ToggleFavorite flips the favorite flag for a channel and reports the new
// state. Channels are keyed by stream URL.
func (s *Service) ToggleFavorite(id int) (bool, error) {
	ch, ok := s.ChannelByID(id)
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrChannelNotFound, id)
	}
	fav, err := s.store.IsFavorite(ch.URL)
	if err != nil {
		return false, err
	}
	if fav {
		return false, s.store.RemoveFavorite(ch.URL)
	}
	return true, s.store.AddFavorite(ch.URL)
}

// Favorites returns the catalog channels currently marked favorite, in
// catalog order.
func (s *Service) Favorites() ([]m3u.Channel, error) {
	keys, err := s.store.Favorites()
	if err != nil {
		return nil, err
	}
	isFav := make(map[string]bool, len(keys))
	for _, k := range keys {
		isFav[k] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []m3u.Channel
	for _, ch := range s.channels {
		if isFav[ch.URL] {
			out = append(out, ch)
		}
	}
	return out, nil
}

// ContinueWatching returns the recent-channels list, newest first.
func (s *Service) ContinueWatching() ([]prefs.ContinueEntry, error) {
	return s.store.ContinueWatching()
}

// RemoveContinueWatching drops one entry by stream URL.
func (s *Service) RemoveContinueWatching(url string) error {
	return s.store.RemoveContinue(url)
}

// PlaylistHistory returns recently loaded playlist URLs, newest first.
func (s *Service) PlaylistHistory() ([]string, error) {
	return s.store.PlaylistURLs()
}

// DarkMode reads the theme flag.
func (s *Service) DarkMode() (bool, error) { return s.store.DarkMode() }

// SetDarkMode stores the theme flag.
func (s *Service) SetDarkMode(on bool) error { return s.store.SetDarkMode(on) }

// LoadGuide parses the XMLTV document at path and swaps it in.
func (s *Service) LoadGuide(path string) error {
	doc, err := epg.LoadFile(path)
	if err != nil {
		return err
	}
	guide := epg.NewGuide(doc)
	s.guide.Store(guide)
	s.logger.Info().
		Str(log.FieldEvent, "app.guide_loaded").
		Int("guide_channels", guide.Channels()).
		Msg("program guide installed")
	return nil
}

// NowNext answers the guide query for a channel. ok is false when no guide
// is loaded or the channel cannot be matched.
func (s *Service) NowNext(id int, at time.Time) (epg.NowNext, bool) {
	guide := s.guide.Load()
	if guide == nil {
		return epg.NowNext{}, false
	}
	ch, found := s.ChannelByID(id)
	if !found {
		return epg.NowNext{}, false
	}
	return guide.Lookup(ch, at)
}

// ExportM3U writes the catalog, optionally restricted to one group, as an
// extended M3U document.
func (s *Service) ExportM3U(w io.Writer, group string) error {
	s.mu.RLock()
	channels := s.channels
	s.mu.RUnlock()

	if group != "" {
		channels = catalog.FilterGroup(channels, group)
	}
	return m3u.WriteM3U(w, channels)
}
