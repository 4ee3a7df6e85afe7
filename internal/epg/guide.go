// SPDX-License-Identifier: MIT

package epg

import (
	"sort"
	"time"

	"github.com/zaptv/zaptv/internal/m3u"
	"github.com/zaptv/zaptv/internal/metrics"
)

// Entry is one resolved guide entry with parsed times.
type Entry struct {
	Title string    `json:"title"`
	Desc  string    `json:"desc,omitempty"`
	Start time.Time `json:"start"`
	Stop  time.Time `json:"stop"`
}

// NowNext is the guide answer for a channel at a point in time.
type NowNext struct {
	Now  *Entry `json:"now,omitempty"`
	Next *Entry `json:"next,omitempty"`
}

// Guide is an immutable queryable view over a decoded XMLTV document.
// Build a new one on each guide refresh and swap it in.
type Guide struct {
	nameToID map[string]string
	byID     map[string][]Entry
	fuzzyMax int
}

// NewGuide indexes a decoded document. Programmes with unparseable times
// are dropped.
func NewGuide(doc *TV) *Guide {
	g := &Guide{
		nameToID: make(map[string]string, len(doc.Channels)),
		byID:     make(map[string][]Entry),
		fuzzyMax: 2,
	}

	for _, ch := range doc.Channels {
		if ch.ID == "" {
			continue
		}
		for _, name := range ch.DisplayName {
			if key := NameKey(name); key != "" {
				g.nameToID[key] = ch.ID
			}
		}
	}

	for _, p := range doc.Programs {
		start, err := ParseTime(p.Start)
		if err != nil {
			continue
		}
		stop, err := ParseTime(p.Stop)
		if err != nil {
			continue
		}
		g.byID[p.Channel] = append(g.byID[p.Channel], Entry{
			Title: p.Title.Value,
			Desc:  p.Desc,
			Start: start,
			Stop:  stop,
		})
	}

	for id := range g.byID {
		entries := g.byID[id]
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Start.Before(entries[j].Start)
		})
	}
	return g
}

// Channels reports how many guide channels are indexed.
func (g *Guide) Channels() int { return len(g.byID) }

// Resolve maps a catalog channel onto a guide channel ID: tvg-id when it
// matches directly, then tvg-name, then the channel title with fuzzy
// matching.
func (g *Guide) Resolve(ch m3u.Channel) (string, bool) {
	if ch.TvgID != "" {
		if _, ok := g.byID[ch.TvgID]; ok {
			return ch.TvgID, true
		}
	}
	if ch.TvgName != "" {
		if id, ok := findBest(ch.TvgName, g.nameToID, g.fuzzyMax); ok {
			return id, true
		}
	}
	return findBest(ch.Title, g.nameToID, g.fuzzyMax)
}

// Lookup answers the now/next query for a catalog channel at time now.
func (g *Guide) Lookup(ch m3u.Channel, now time.Time) (NowNext, bool) {
	id, ok := g.Resolve(ch)
	if !ok {
		metrics.IncEPGLookup(false)
		return NowNext{}, false
	}

	entries := g.byID[id]
	var result NowNext
	for i := range entries {
		e := entries[i]
		if !e.Start.After(now) && e.Stop.After(now) {
			result.Now = &e
			if i+1 < len(entries) {
				next := entries[i+1]
				result.Next = &next
			}
			break
		}
		if e.Start.After(now) {
			result.Next = &e
			break
		}
	}

	hit := result.Now != nil || result.Next != nil
	metrics.IncEPGLookup(hit)
	return result, hit
}
