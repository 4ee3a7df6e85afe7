// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldChannelID = "channel_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Playback fields
	FieldErrorKind  = "error_kind"
	FieldRetryCount = "retry_count"
	FieldStreamURL  = "stream_url"

	// Playlist fields
	FieldPlaylistURL  = "playlist_url"
	FieldPlaylistPath = "playlist_path"
	FieldChannelCount = "channel_count"
)
