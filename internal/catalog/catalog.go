// SPDX-License-Identifier: MIT

// Package catalog provides derived views over a parsed channel list:
// grouping, search, filtering and ordered navigation.
package catalog

import (
	"sort"
	"strings"

	"github.com/zaptv/zaptv/internal/m3u"
)

// GroupByCategory buckets channels by their group label. The group keys are
// taken verbatim from the channels (the parser has already defaulted empty
// groups); relative channel order is preserved within each bucket.
func GroupByCategory(channels []m3u.Channel) map[string][]m3u.Channel {
	groups := make(map[string][]m3u.Channel)
	for _, ch := range channels {
		groups[ch.Group] = append(groups[ch.Group], ch)
	}
	return groups
}

// Categories returns the sorted list of group labels present in channels.
func Categories(channels []m3u.Channel) []string {
	groups := GroupByCategory(channels)
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Search filters channels by a case-insensitive substring match against
// title, group and country. An empty or whitespace-only query returns the
// input unchanged. Relative order is always preserved.
func Search(channels []m3u.Channel, query string) []m3u.Channel {
	if strings.TrimSpace(query) == "" {
		return channels
	}
	term := strings.ToLower(query)
	var out []m3u.Channel
	for _, ch := range channels {
		if strings.Contains(strings.ToLower(ch.Title), term) ||
			strings.Contains(strings.ToLower(ch.Group), term) ||
			strings.Contains(strings.ToLower(ch.Country), term) {
			out = append(out, ch)
		}
	}
	return out
}

// PrefixSearch returns the channels whose title starts with the given value,
// case-insensitively. Used by the quick-search overlay.
func PrefixSearch(channels []m3u.Channel, value string) []m3u.Channel {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	prefix := strings.ToLower(value)
	var out []m3u.Channel
	for _, ch := range channels {
		if strings.HasPrefix(strings.ToLower(ch.Title), prefix) {
			out = append(out, ch)
		}
	}
	return out
}

// FilterGroup keeps only channels whose group label equals group exactly.
func FilterGroup(channels []m3u.Channel, group string) []m3u.Channel {
	var out []m3u.Channel
	for _, ch := range channels {
		if ch.Group == group {
			out = append(out, ch)
		}
	}
	return out
}

// FilterIDs keeps only channels whose id is in the given set, preserving
// catalog order. Used for favorites-only and recently-watched views.
func FilterIDs(channels []m3u.Channel, ids map[int]bool) []m3u.Channel {
	var out []m3u.Channel
	for _, ch := range channels {
		if ids[ch.ID] {
			out = append(out, ch)
		}
	}
	return out
}

// SortKey selects the field an explicit sort is applied on. Sorting is
// applied last, after all filters.
type SortKey string

const (
	SortByTitle SortKey = "title"
	SortByGroup SortKey = "group"
)

// Sort returns a copy of channels ordered by the given key. Ties keep the
// original relative order.
func Sort(channels []m3u.Channel, key SortKey) []m3u.Channel {
	out := make([]m3u.Channel, len(channels))
	copy(out, channels)
	switch key {
	case SortByTitle:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
		})
	case SortByGroup:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Group) < strings.ToLower(out[j].Group)
		})
	}
	return out
}

// Next returns the channel following current in catalog order, wrapping at
// the end. Returns false when channels is empty or current is not present.
func Next(channels []m3u.Channel, currentID int) (m3u.Channel, bool) {
	idx := indexOf(channels, currentID)
	if idx == -1 {
		return m3u.Channel{}, false
	}
	return channels[(idx+1)%len(channels)], true
}

// Prev returns the channel preceding current in catalog order, wrapping at
// the start.
func Prev(channels []m3u.Channel, currentID int) (m3u.Channel, bool) {
	idx := indexOf(channels, currentID)
	if idx == -1 {
		return m3u.Channel{}, false
	}
	return channels[(idx-1+len(channels))%len(channels)], true
}

// Remove drops the channel with the given id from the list.
func Remove(channels []m3u.Channel, id int) []m3u.Channel {
	var out []m3u.Channel
	for _, ch := range channels {
		if ch.ID != id {
			out = append(out, ch)
		}
	}
	return out
}

func indexOf(channels []m3u.Channel, id int) int {
	for i, ch := range channels {
		if ch.ID == id {
			return i
		}
	}
	return -1
}
