// SPDX-License-Identifier: MIT

// Package m3u parses M3U/EXTM3U playlists into channel records.
package m3u

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultTitle is used when an EXTINF entry carries no display name.
	DefaultTitle = "Unknown Channel"
	// DefaultGroup is the sentinel for channels without a group-title.
	DefaultGroup = "Uncategorized"

	extinfPrefix = "#EXTINF:"
)

// Channel represents a single channel from an M3U playlist.
type Channel struct {
	ID       int     `json:"id"`
	URL      string  `json:"url"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Logo     string  `json:"logo,omitempty"`
	Group    string  `json:"group"`
	Country  string  `json:"country,omitempty"`
	Language string  `json:"language,omitempty"`
	TvgID    string  `json:"tvg_id,omitempty"`
	TvgName  string  `json:"tvg_name,omitempty"`
	Radio    bool    `json:"radio,omitempty"`
}

var (
	// Leading numeric token of the metadata segment, e.g. "-1" or "12.5".
	durationRe = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)`)
	// key="value" pairs; keys are word characters and hyphens.
	attrRe = regexp.MustCompile(`([\w-]+)="([^"]*)"`)
)

// Parse scans content for #EXTINF entries and returns the channels in file
// order. Channel IDs are assigned sequentially starting at 1 and are only
// meaningful within a single Parse call. Malformed or incomplete entries are
// skipped; Parse never fails.
func Parse(content string) []Channel {
	lines := strings.Split(content, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	var channels []Channel
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !strings.HasPrefix(line, extinfPrefix) {
			continue
		}

		// The URL must be on the line immediately following the EXTINF
		// line. An orphaned EXTINF (end of file, blank line, or another
		// comment next) yields no channel.
		if i+1 >= len(lines) {
			continue
		}
		next := lines[i+1]
		if next == "" || strings.HasPrefix(next, "#") {
			continue
		}

		ch := parseExtinf(line[len(extinfPrefix):])
		ch.ID = len(channels) + 1
		ch.URL = next
		channels = append(channels, ch)
		i++ // URL line consumed
	}
	return channels
}

// parseExtinf parses the remainder of an EXTINF line (after the tag prefix)
// into a Channel with all attribute fields populated or defaulted.
func parseExtinf(content string) Channel {
	ch := Channel{
		Title:    DefaultTitle,
		Duration: -1,
		Group:    DefaultGroup,
	}

	comma := strings.Index(content, ",")
	if comma == -1 {
		// No metadata/title separator; entry keeps default attributes.
		return ch
	}

	meta := parseMetadata(content[:comma])
	if title := strings.TrimSpace(content[comma+1:]); title != "" {
		ch.Title = title
	}
	if d, ok := meta.duration(); ok {
		ch.Duration = d
	}
	ch.Logo = meta.first("tvg-logo", "logo")
	if g := meta.first("group-title", "group"); g != "" {
		ch.Group = g
	}
	ch.Country = meta.first("tvg-country", "country")
	ch.Language = meta.first("tvg-language", "language")
	ch.TvgID = meta.first("tvg-id")
	ch.TvgName = meta.first("tvg-name")
	ch.Radio = meta.first("radio") == "true"
	return ch
}

// metadata holds the parsed attributes of one EXTINF metadata segment. Keys
// are normalized to lowercase; the raw duration token is kept separately.
type metadata struct {
	attrs       map[string]string
	durationRaw string
}

func parseMetadata(segment string) metadata {
	m := metadata{attrs: make(map[string]string)}

	if match := durationRe.FindString(segment); match != "" {
		m.durationRaw = match
	}

	// Later duplicates overwrite earlier ones.
	for _, kv := range attrRe.FindAllStringSubmatch(segment, -1) {
		m.attrs[strings.ToLower(kv[1])] = kv[2]
	}
	return m
}

func (m metadata) duration() (float64, bool) {
	if m.durationRaw == "" {
		return 0, false
	}
	d, err := strconv.ParseFloat(m.durationRaw, 64)
	if err != nil {
		return 0, false
	}
	return d, true
}

// first returns the value of the first present key, empty string otherwise.
func (m metadata) first(keys ...string) string {
	for _, k := range keys {
		if v, ok := m.attrs[k]; ok && v != "" {
			return v
		}
	}
	return ""
}
