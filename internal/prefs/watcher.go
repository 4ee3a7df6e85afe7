// SPDX-License-Identifier: MIT

package prefs

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/zaptv/zaptv/internal/log"
	"github.com/zaptv/zaptv/internal/m3u"
)

// Watcher bridges playback activity into the continue-watching list. Store
// failures are logged, not propagated; playback must not stall on a slow
// preference write.
type Watcher struct {
	store  Store
	logger zerolog.Logger
}

func NewWatcher(store Store) *Watcher {
	return &Watcher{store: store, logger: log.WithComponent("prefs")}
}

func (w *Watcher) Touch(ch m3u.Channel, at time.Time) {
	err := w.store.TouchContinue(ContinueEntry{
		ChannelID:   ch.ID,
		ChannelName: ch.Title,
		URL:         ch.URL,
		Timestamp:   at,
	})
	if err != nil {
		w.logger.Error().Err(err).
			Str(log.FieldEvent, "prefs.touch_failed").
			Int(log.FieldChannelID, ch.ID).
			Msg("continue-watching update failed")
	}
}

func (w *Watcher) UpdatePosition(channelID int, position float64, at time.Time) {
	if err := w.store.UpdatePosition(channelID, position, at); err != nil {
		w.logger.Error().Err(err).
			Str(log.FieldEvent, "prefs.position_failed").
			Int(log.FieldChannelID, channelID).
			Msg("position update failed")
	}
}
