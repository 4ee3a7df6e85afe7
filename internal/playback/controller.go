// SPDX-License-Identifier: MIT

// Package playback drives the per-channel playback state machine: URL
// validation, CORS proxy rewriting, state transitions from player signals,
// error classification and the watchdog timers that guarantee forward
// progress.
package playback

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zaptv/zaptv/internal/log"
	"github.com/zaptv/zaptv/internal/m3u"
	"github.com/zaptv/zaptv/internal/metrics"
)

// Status is the lifecycle state of a playback session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusPlaying   Status = "playing"
	StatusBuffering Status = "buffering"
	StatusError     Status = "error"
)

const (
	// DefaultLoadingTimeout bounds how long a channel may sit in Loading
	// before the controller signals advance-to-next.
	DefaultLoadingTimeout = 15 * time.Second
	// DefaultErrorTimeout bounds how long an Error state is shown before
	// the controller signals advance-to-next.
	DefaultErrorTimeout = 4 * time.Second
)

var (
	// ErrNoSession is returned by Retry when no channel is selected.
	ErrNoSession = errors.New("playback: no active session")
	// ErrSuperseded is returned by Retry after the session's watchdog has
	// already fired; the session is dead and cannot be revived.
	ErrSuperseded = errors.New("playback: session superseded")
)

var supportedSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"rtmp":  true,
	"rtmps": true,
}

// ValidateChannel checks that a channel can be handed to the player. The
// error messages intentionally carry the "invalid" keyword so they classify
// as VALIDATION.
func ValidateChannel(ch *m3u.Channel) error {
	if ch == nil {
		return errors.New("invalid channel: no channel provided")
	}
	raw := strings.TrimSpace(ch.URL)
	if raw == "" {
		return errors.New("invalid channel: empty URL")
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.New("invalid channel: malformed URL")
	}
	if !supportedSchemes[strings.ToLower(u.Scheme)] {
		return fmt.Errorf("invalid channel: unsupported protocol %q", u.Scheme)
	}
	return nil
}

// Watcher is the continue-watching collaborator. Touch records a successful
// channel activation; UpdatePosition tracks playback progress per channel.
type Watcher interface {
	Touch(ch m3u.Channel, at time.Time)
	UpdatePosition(channelID int, position float64, at time.Time)
}

// Options configures a Controller.
type Options struct {
	LoadingTimeout time.Duration // defaults to DefaultLoadingTimeout
	ErrorTimeout   time.Duration // defaults to DefaultErrorTimeout
	Proxy          ProxyPolicy   // zero value disables rewriting
	// OnAdvance is invoked (outside the controller lock) when a watchdog
	// decides the current channel is stuck and the caller should move on.
	OnAdvance func(from m3u.Channel)
	Watcher   Watcher
	Logger    *zerolog.Logger
}

// Snapshot is the caller-facing view of the current session.
type Snapshot struct {
	SessionID  string      `json:"session_id"`
	Channel    *m3u.Channel `json:"channel,omitempty"`
	Status     Status      `json:"status"`
	Error      *ErrorInfo  `json:"error,omitempty"`
	RetryCount int         `json:"retry_count"`
}

// session is the mutable per-selection state. It is created on Select and
// replaced wholesale on the next Select; all timers and player subscriptions
// carry its id so late signals from a replaced session are discarded.
type session struct {
	id         string
	channel    m3u.Channel
	status     Status
	errorInfo  *ErrorInfo
	retryCount int
	wasPlaying bool
	expired    bool // watchdog fired; every further signal is ignored
	cancel     context.CancelFunc
	startedAt  time.Time
}

// watchdogEntry pairs a timer with the arm generation that created it. A
// callback that fired before Stop but lost the lock race to a re-arm carries
// a stale generation and is dropped instead of consuming the fresh window.
type watchdogEntry struct {
	timer *time.Timer
	gen   uint64
}

// Controller owns the playback state machine. All transitions are serialized
// behind one mutex; player events and timer firings funnel through it.
type Controller struct {
	mu      sync.Mutex
	player  Player
	opts    Options
	session *session
	timers  map[string]*watchdogEntry // keyed "<session id>/<watchdog>"
	armGen  uint64
	logger  zerolog.Logger
	now     func() time.Time
}

// NewController wires a controller around the given playback primitive.
func NewController(player Player, opts Options) *Controller {
	if opts.LoadingTimeout <= 0 {
		opts.LoadingTimeout = DefaultLoadingTimeout
	}
	if opts.ErrorTimeout <= 0 {
		opts.ErrorTimeout = DefaultErrorTimeout
	}
	logger := log.WithComponent("playback")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Controller{
		player: player,
		opts:   opts,
		timers: make(map[string]*watchdogEntry),
		logger: logger,
		now:    time.Now,
	}
}

// Select makes ch the current channel. The previous session, if any, is
// superseded: its timers are canceled and any late signal it still emits is
// dropped. A channel failing validation transitions straight to Error with
// kind VALIDATION and never reaches the player.
func (c *Controller) Select(ch m3u.Channel) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.supersedeLocked()

	s := &session{
		id:        uuid.New().String(),
		channel:   ch,
		startedAt: c.now(),
	}
	c.session = s
	metrics.IncPlaybackSession()

	if err := ValidateChannel(&ch); err != nil {
		c.enterErrorLocked(s, err)
		return c.snapshotLocked()
	}

	if c.opts.Watcher != nil {
		c.opts.Watcher.Touch(ch, c.now())
	}

	c.enterLoadingLocked(s)
	c.startLoadLocked(s)
	return c.snapshotLocked()
}

// Reset tears down the current session and returns to the channel-less Idle
// state.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.supersedeLocked()
	c.session = nil
}

// Retry clears the error state, re-enters Loading and re-issues the stream
// URL to the player. The retry counter only ever grows until the next
// Select. No cap is enforced here; see RetryHandler for callers that want
// backoff with a ceiling.
func (c *Controller) Retry() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return c.snapshotLocked(), ErrNoSession
	}
	if s.expired {
		return c.snapshotLocked(), ErrSuperseded
	}

	s.retryCount++
	s.errorInfo = nil
	s.wasPlaying = false
	metrics.IncPlaybackRetry()
	c.logger.Info().
		Str(log.FieldEvent, "playback.retry").
		Str(log.FieldSessionID, s.id).
		Int(log.FieldRetryCount, s.retryCount).
		Msg("manual retry")

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	c.enterLoadingLocked(s)
	c.startLoadLocked(s)
	return c.snapshotLocked(), nil
}

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	if c.session == nil {
		return Snapshot{Status: StatusIdle}
	}
	s := c.session
	ch := s.channel
	return Snapshot{
		SessionID:  s.id,
		Channel:    &ch,
		Status:     s.status,
		Error:      s.errorInfo,
		RetryCount: s.retryCount,
	}
}

// supersedeLocked invalidates the current session: cancels its load context
// and both watchdogs. Late events carrying its id will be dropped.
func (c *Controller) supersedeLocked() {
	s := c.session
	if s == nil {
		return
	}
	s.expired = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	c.stopWatchdogLocked(s.id, "loading")
	c.stopWatchdogLocked(s.id, "error")
}

func (c *Controller) enterLoadingLocked(s *session) {
	c.transitionLocked(s, StatusLoading)
	c.stopWatchdogLocked(s.id, "error")
	c.armWatchdogLocked(s, "loading", c.opts.LoadingTimeout)
}

func (c *Controller) enterErrorLocked(s *session, cause error) {
	s.errorInfo = Describe(cause, s.channel.URL, c.now())
	s.wasPlaying = false
	c.transitionLocked(s, StatusError)
	metrics.IncPlaybackError(string(s.errorInfo.Kind))
	c.logger.Warn().
		Err(cause).
		Str(log.FieldEvent, "playback.error").
		Str(log.FieldSessionID, s.id).
		Str(log.FieldErrorKind, string(s.errorInfo.Kind)).
		Str(log.FieldStreamURL, s.channel.URL).
		Msg("playback failed")
	c.stopWatchdogLocked(s.id, "loading")
	c.armWatchdogLocked(s, "error", c.opts.ErrorTimeout)
}

// startLoadLocked hands the proxied URL to the player and pumps its events
// back into the state machine, tagged with the session id.
func (c *Controller) startLoadLocked(s *session) {
	target := c.opts.Proxy.Rewrite(s.channel.URL)
	if target != s.channel.URL {
		metrics.IncProxyRewrite()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	sessionID := s.id
	go func() {
		events, err := c.player.Load(ctx, target)
		if err != nil {
			c.playerError(sessionID, err)
			return
		}
		for ev := range events {
			c.handleEvent(sessionID, ev)
		}
	}()
}

// handleEvent applies one player signal. Signals from superseded sessions
// are discarded so they cannot corrupt the now-current session.
func (c *Controller) handleEvent(sessionID string, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil || s.id != sessionID || s.expired {
		c.logger.Debug().
			Str(log.FieldEvent, "playback.stale_signal").
			Str(log.FieldSessionID, sessionID).
			Str("signal", ev.Type.String()).
			Msg("dropping signal from superseded session")
		return
	}

	switch ev.Type {
	case EventReady:
		s.wasPlaying = true
		s.errorInfo = nil
		c.transitionLocked(s, StatusPlaying)
		c.stopWatchdogLocked(s.id, "loading")
		c.stopWatchdogLocked(s.id, "error")

	case EventBufferStart:
		// Re-enter a loading-equivalent state; wasPlaying is retained so
		// buffer-end can restore Playing.
		if s.status == StatusPlaying {
			c.transitionLocked(s, StatusBuffering)
		}
		c.armWatchdogLocked(s, "loading", c.opts.LoadingTimeout)

	case EventBufferEnd:
		c.stopWatchdogLocked(s.id, "loading")
		if s.wasPlaying {
			c.transitionLocked(s, StatusPlaying)
		} else if s.status == StatusLoading {
			// Clears the loading indication without forcing Playing.
			c.transitionLocked(s, StatusIdle)
		}

	case EventProgress:
		if c.opts.Watcher != nil && (s.status == StatusPlaying || s.status == StatusBuffering) {
			c.opts.Watcher.UpdatePosition(s.channel.ID, ev.Elapsed, c.now())
		}

	case EventError:
		cause := ev.Err
		if cause == nil {
			cause = errors.New("stream playback failed")
		}
		c.enterErrorLocked(s, cause)
	}
}

func (c *Controller) playerError(sessionID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	if s == nil || s.id != sessionID || s.expired {
		return
	}
	c.enterErrorLocked(s, err)
}

func (c *Controller) transitionLocked(s *session, next Status) {
	if s.status == next {
		return
	}
	c.logger.Debug().
		Str(log.FieldEvent, "playback.transition").
		Str(log.FieldSessionID, s.id).
		Str(log.FieldOldState, string(s.status)).
		Str(log.FieldNewState, string(next)).
		Int(log.FieldChannelID, s.channel.ID).
		Msg("state change")
	s.status = next
}

// armWatchdogLocked (re)arms the named watchdog for s, replacing any
// previous timer under the same key. At most one timer per session and kind
// is ever live; each arm gets a fresh generation so a replaced timer's
// pending callback cannot fire against the new window.
func (c *Controller) armWatchdogLocked(s *session, kind string, d time.Duration) {
	key := s.id + "/" + kind
	if e, ok := c.timers[key]; ok {
		e.timer.Stop()
	}
	c.armGen++
	gen := c.armGen
	sessionID := s.id
	entry := &watchdogEntry{gen: gen}
	entry.timer = time.AfterFunc(d, func() {
		c.watchdogFired(sessionID, kind, gen)
	})
	c.timers[key] = entry
}

func (c *Controller) stopWatchdogLocked(sessionID, kind string) {
	key := sessionID + "/" + kind
	if e, ok := c.timers[key]; ok {
		e.timer.Stop()
		delete(c.timers, key)
	}
}

// watchdogFired runs when a watchdog timer elapses. It fires the advance
// signal exactly once per session: only the callback matching the live
// timer's generation may act, and the session is marked expired before the
// callback runs, so repeated or late firings are no-ops.
func (c *Controller) watchdogFired(sessionID, kind string, gen uint64) {
	c.mu.Lock()
	entry, ok := c.timers[sessionID+"/"+kind]
	if !ok || entry.gen != gen {
		c.mu.Unlock()
		return
	}
	s := c.session
	if s == nil || s.id != sessionID || s.expired {
		c.mu.Unlock()
		return
	}

	stuck := false
	switch kind {
	case "loading":
		stuck = s.status == StatusLoading || s.status == StatusBuffering
	case "error":
		stuck = s.status == StatusError
	}
	if !stuck {
		c.mu.Unlock()
		return
	}

	s.expired = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	c.stopWatchdogLocked(sessionID, "loading")
	c.stopWatchdogLocked(sessionID, "error")
	ch := s.channel
	advance := c.opts.OnAdvance
	metrics.IncWatchdogAdvance(kind)
	c.logger.Info().
		Str(log.FieldEvent, "playback.watchdog_advance").
		Str(log.FieldSessionID, sessionID).
		Str("watchdog", kind).
		Int(log.FieldChannelID, ch.ID).
		Msg("channel stuck, advancing")
	c.mu.Unlock()

	if advance != nil {
		advance(ch)
	}
}
