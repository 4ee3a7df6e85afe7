// SPDX-License-Identifier: MIT

package prefs

import (
	"sync"
	"time"
)

// MemoryStore is the in-process Store used for tests and for running
// without a data directory. Zero value is not usable; call NewMemoryStore.
type MemoryStore struct {
	mu        sync.RWMutex
	favorites []string
	cont      []ContinueEntry
	urls      []string
	darkMode  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) AddFavorite(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.favorites {
		if f == key {
			return nil
		}
	}
	s.favorites = append(s.favorites, key)
	return nil
}

func (s *MemoryStore) RemoveFavorite(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.favorites[:0]
	for _, f := range s.favorites {
		if f != key {
			out = append(out, f)
		}
	}
	s.favorites = out
	return nil
}

func (s *MemoryStore) IsFavorite(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.favorites {
		if f == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Favorites() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.favorites...), nil
}

func (s *MemoryStore) TouchContinue(e ContinueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cont = pushRecent(s.cont, e, func(e ContinueEntry) string { return e.URL })
	return nil
}

func (s *MemoryStore) UpdatePosition(channelID int, position float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cont {
		if s.cont[i].ChannelID == channelID {
			s.cont[i].LastPosition = position
			s.cont[i].Timestamp = at
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) ContinueWatching() ([]ContinueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ContinueEntry(nil), s.cont...), nil
}

func (s *MemoryStore) RemoveContinue(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.cont[:0]
	for _, e := range s.cont {
		if e.URL != url {
			out = append(out, e)
		}
	}
	s.cont = out
	return nil
}

func (s *MemoryStore) TouchPlaylistURL(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = pushRecent(s.urls, url, func(u string) string { return u })
	return nil
}

func (s *MemoryStore) PlaylistURLs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.urls...), nil
}

func (s *MemoryStore) SetDarkMode(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.darkMode = on
	return nil
}

func (s *MemoryStore) DarkMode() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.darkMode, nil
}

func (s *MemoryStore) Close() error { return nil }
