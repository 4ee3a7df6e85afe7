// SPDX-License-Identifier: MIT

// Package prefs persists viewer preferences: favorites, the
// continue-watching list, recently used playlist URLs and the theme flag.
// Recency lists are capped and deduplicated by identity key, newest first.
package prefs

import (
	"time"
)

// RecentLimit caps every recency-ordered list.
const RecentLimit = 10

// ContinueEntry is one continue-watching record. Entries are identified by
// the stream URL so the list survives playlist re-parses that renumber
// channel IDs.
type ContinueEntry struct {
	ChannelID    int       `json:"channelId"`
	ChannelName  string    `json:"channelName"`
	URL          string    `json:"url"`
	Timestamp    time.Time `json:"timestamp"`
	LastPosition float64   `json:"lastPosition"`
}

// Store is the preference repository. Implementations must apply the
// RecentLimit cap and identity-key dedup on every recency list.
type Store interface {
	AddFavorite(key string) error
	RemoveFavorite(key string) error
	IsFavorite(key string) (bool, error)
	// Favorites returns keys in the order they were first added.
	Favorites() ([]string, error)

	// TouchContinue moves the entry to the front of the continue-watching
	// list, replacing any previous entry with the same URL.
	TouchContinue(e ContinueEntry) error
	// UpdatePosition updates LastPosition on the newest entry for the
	// channel, if present. A missing entry is not an error.
	UpdatePosition(channelID int, position float64, at time.Time) error
	ContinueWatching() ([]ContinueEntry, error)
	RemoveContinue(url string) error

	// TouchPlaylistURL records url as the most recently used playlist.
	TouchPlaylistURL(url string) error
	PlaylistURLs() ([]string, error)

	SetDarkMode(on bool) error
	DarkMode() (bool, error)

	Close() error
}

// pushRecent prepends e, drops earlier entries with the same key and trims
// to RecentLimit.
func pushRecent[T any](list []T, e T, key func(T) string) []T {
	out := make([]T, 0, len(list)+1)
	out = append(out, e)
	k := key(e)
	for _, old := range list {
		if key(old) == k {
			continue
		}
		out = append(out, old)
	}
	if len(out) > RecentLimit {
		out = out[:RecentLimit]
	}
	return out
}
