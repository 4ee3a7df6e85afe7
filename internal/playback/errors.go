// SPDX-License-Identifier: MIT

package playback

import (
	"strings"
	"time"
)

// Kind is the closed classification set for playback-path failures.
type Kind string

const (
	KindNetwork    Kind = "NETWORK"
	KindStream     Kind = "STREAM"
	KindPlaylist   Kind = "PLAYLIST"
	KindValidation Kind = "VALIDATION"
	KindUnknown    Kind = "UNKNOWN"
)

// Details is the fixed user-facing description for an error kind.
type Details struct {
	Title      string `json:"title"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

var kindDetails = map[Kind]Details{
	KindNetwork: {
		Title:      "Network Error",
		Message:    "Unable to connect to the server. Please check your internet connection.",
		Suggestion: "Try refreshing the page or check your network connection.",
	},
	KindStream: {
		Title:      "Stream Error",
		Message:    "Unable to play this channel. The stream might be unavailable.",
		Suggestion: "Try another channel or check back later.",
	},
	KindPlaylist: {
		Title:      "Playlist Error",
		Message:    "Unable to load the channel list.",
		Suggestion: "Try loading a different playlist or check the URL.",
	},
	KindValidation: {
		Title:      "Invalid Channel",
		Message:    "This channel appears to be invalid or corrupted.",
		Suggestion: "Try selecting a different channel.",
	},
	KindUnknown: {
		Title:      "Unexpected Error",
		Message:    "Something went wrong. Please try again.",
		Suggestion: "Refresh the page or try again later.",
	},
}

// DetailsFor returns the fixed description triple for a kind.
func DetailsFor(kind Kind) Details {
	if d, ok := kindDetails[kind]; ok {
		return d
	}
	return kindDetails[KindUnknown]
}

// Classify maps an error onto the taxonomy by inspecting its lowercased
// message for keyword hints. A nil error is UNKNOWN.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "network", "timeout"):
		return KindNetwork
	case containsAny(msg, "stream", "playback", "media"):
		return KindStream
	case containsAny(msg, "playlist", "m3u", "parse"):
		return KindPlaylist
	case containsAny(msg, "invalid", "validation", "format"):
		return KindValidation
	default:
		return KindUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ErrorInfo is the enriched error record surfaced through the Error state.
// The raw cause is retained for diagnostics but callers render the fixed
// details triple.
type ErrorInfo struct {
	Kind      Kind      `json:"kind"`
	Details   Details   `json:"details"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
	Cause     error     `json:"-"`
}

// Describe classifies err and wraps it with the channel URL and timestamp.
func Describe(err error, url string, at time.Time) *ErrorInfo {
	kind := Classify(err)
	return &ErrorInfo{
		Kind:      kind,
		Details:   DetailsFor(kind),
		URL:       url,
		Timestamp: at,
		Cause:     err,
	}
}
