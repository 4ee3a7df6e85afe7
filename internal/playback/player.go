// SPDX-License-Identifier: MIT

package playback

import "context"

// EventType identifies a signal from the playback primitive.
type EventType int

const (
	EventReady EventType = iota
	EventBufferStart
	EventBufferEnd
	EventProgress
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventReady:
		return "ready"
	case EventBufferStart:
		return "buffer_start"
	case EventBufferEnd:
		return "buffer_end"
	case EventProgress:
		return "progress"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single signal emitted by a Player while a stream is loaded.
type Event struct {
	Type    EventType
	Elapsed float64 // seconds of playback, for EventProgress
	Err     error   // cause, for EventError
}

// Player is the playback primitive boundary. Load starts loading the given
// (already proxy-rewritten) URL and returns a channel of events for this
// load. The channel is closed when ctx is canceled or the load ends; the
// controller tags every subscription with its session so late events from a
// superseded load are discarded.
type Player interface {
	Load(ctx context.Context, url string) (<-chan Event, error)
}
