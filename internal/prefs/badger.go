// SPDX-License-Identifier: MIT

package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key layout: each collection is one JSON blob. The lists are small (capped
// at RecentLimit) so whole-value rewrites are cheaper than per-entry keys.
const (
	keyFavorites = "prefs:favorites"
	keyContinue  = "prefs:continue"
	keyURLs      = "prefs:urls"
	keyDarkMode  = "prefs:darkmode"
)

// BadgerStore persists preferences in an embedded badger database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the preference database at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open preference store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

// HealthCheck verifies the database still accepts reads.
func (s *BadgerStore) HealthCheck(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("preference store closed")
	}
	return s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keyDarkMode))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// getJSON loads key into out. A missing key leaves out untouched and
// returns false.
func getJSON(txn *badger.Txn, key string, out any) (bool, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	}); err != nil {
		return false, err
	}
	return true, nil
}

func setJSON(txn *badger.Txn, key string, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), buf)
}

// updateList applies fn to the decoded list under key and writes it back.
func updateList[T any](s *BadgerStore, key string, fn func([]T) []T) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var list []T
		if _, err := getJSON(txn, key, &list); err != nil {
			return err
		}
		return setJSON(txn, key, fn(list))
	})
}

func readList[T any](s *BadgerStore, key string) ([]T, error) {
	var list []T
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := getJSON(txn, key, &list)
		return err
	})
	return list, err
}

func (s *BadgerStore) AddFavorite(key string) error {
	return updateList(s, keyFavorites, func(favs []string) []string {
		for _, f := range favs {
			if f == key {
				return favs
			}
		}
		return append(favs, key)
	})
}

func (s *BadgerStore) RemoveFavorite(key string) error {
	return updateList(s, keyFavorites, func(favs []string) []string {
		out := favs[:0]
		for _, f := range favs {
			if f != key {
				out = append(out, f)
			}
		}
		return out
	})
}

func (s *BadgerStore) IsFavorite(key string) (bool, error) {
	favs, err := readList[string](s, keyFavorites)
	if err != nil {
		return false, err
	}
	for _, f := range favs {
		if f == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *BadgerStore) Favorites() ([]string, error) {
	return readList[string](s, keyFavorites)
}

func (s *BadgerStore) TouchContinue(e ContinueEntry) error {
	return updateList(s, keyContinue, func(list []ContinueEntry) []ContinueEntry {
		return pushRecent(list, e, func(e ContinueEntry) string { return e.URL })
	})
}

func (s *BadgerStore) UpdatePosition(channelID int, position float64, at time.Time) error {
	return updateList(s, keyContinue, func(list []ContinueEntry) []ContinueEntry {
		for i := range list {
			if list[i].ChannelID == channelID {
				list[i].LastPosition = position
				list[i].Timestamp = at
				break
			}
		}
		return list
	})
}

func (s *BadgerStore) ContinueWatching() ([]ContinueEntry, error) {
	return readList[ContinueEntry](s, keyContinue)
}

func (s *BadgerStore) RemoveContinue(url string) error {
	return updateList(s, keyContinue, func(list []ContinueEntry) []ContinueEntry {
		out := list[:0]
		for _, e := range list {
			if e.URL != url {
				out = append(out, e)
			}
		}
		return out
	})
}

func (s *BadgerStore) TouchPlaylistURL(url string) error {
	return updateList(s, keyURLs, func(urls []string) []string {
		return pushRecent(urls, url, func(u string) string { return u })
	})
}

func (s *BadgerStore) PlaylistURLs() ([]string, error) {
	return readList[string](s, keyURLs)
}

func (s *BadgerStore) SetDarkMode(on bool) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, keyDarkMode, on)
	})
}

func (s *BadgerStore) DarkMode() (bool, error) {
	var on bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := getJSON(txn, keyDarkMode, &on)
		return err
	})
	return on, err
}
