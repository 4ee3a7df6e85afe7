// SPDX-License-Identifier: MIT

// Package player provides the HTTP playback primitive: it opens the stream,
// verifies bytes actually flow, and translates transport activity into the
// playback event stream.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/zaptv/zaptv/internal/log"
	"github.com/zaptv/zaptv/internal/playback"
)

const (
	defaultUserAgent        = "zaptv/1.0"
	defaultChunkSize        = 32 * 1024
	defaultProgressInterval = 2 * time.Second
	// defaultStallTimeout is how long a read may block before the stream
	// is considered buffering.
	defaultStallTimeout = 5 * time.Second
)

// Options tunes the probe.
type Options struct {
	Client           *http.Client  // defaults to a client without overall timeout; cancellation comes from ctx
	UserAgent        string        // defaults to defaultUserAgent
	ProgressInterval time.Duration // how often elapsed-time progress is reported
	StallTimeout     time.Duration // read inactivity before a buffer-start signal
	Logger           *zerolog.Logger
}

// Probe implements playback.Player over HTTP. It consumes the stream body
// in chunks and reports ready, buffering and progress signals.
type Probe struct {
	client           *http.Client
	userAgent        string
	progressInterval time.Duration
	stallTimeout     time.Duration
	logger           zerolog.Logger
}

// NewProbe builds a Probe with the given options.
func NewProbe(opts Options) *Probe {
	p := &Probe{
		client:           opts.Client,
		userAgent:        opts.UserAgent,
		progressInterval: opts.ProgressInterval,
		stallTimeout:     opts.StallTimeout,
		logger:           log.WithComponent("player"),
	}
	if p.client == nil {
		p.client = &http.Client{}
	}
	if p.userAgent == "" {
		p.userAgent = defaultUserAgent
	}
	if p.progressInterval <= 0 {
		p.progressInterval = defaultProgressInterval
	}
	if p.stallTimeout <= 0 {
		p.stallTimeout = defaultStallTimeout
	}
	if opts.Logger != nil {
		p.logger = *opts.Logger
	}
	return p
}

// Load opens url and streams playback events until the stream ends or ctx
// is canceled. The returned channel is always closed when the session ends.
// Non-HTTP schemes (rtmp, rtmps) cannot be probed over this transport and
// report ready immediately.
func (p *Probe) Load(ctx context.Context, url string) (<-chan playback.Event, error) {
	events := make(chan playback.Event)
	go p.run(ctx, url, events)
	return events, nil
}

func (p *Probe) run(ctx context.Context, url string, events chan<- playback.Event) {
	defer close(events)

	emit := func(ev playback.Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if len(url) < 4 || url[:4] != "http" {
		emit(playback.Event{Type: playback.EventReady})
		<-ctx.Done()
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		emit(playback.Event{Type: playback.EventError, Err: fmt.Errorf("stream request: %w", err)})
		return
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		emit(playback.Event{Type: playback.EventError, Err: fmt.Errorf("stream connect: %w", err)})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		emit(playback.Event{Type: playback.EventError,
			Err: fmt.Errorf("stream returned status %d", resp.StatusCode)})
		return
	}

	p.logger.Debug().
		Str(log.FieldEvent, "player.connected").
		Str(log.FieldStreamURL, url).
		Str("content_type", resp.Header.Get("Content-Type")).
		Msg("stream opened")

	p.consume(ctx, resp.Body, emit)
}

// consume reads the body chunk by chunk. The first chunk produces the ready
// signal; read stalls longer than stallTimeout produce a buffer-start and
// the next successful read a buffer-end.
func (p *Probe) consume(ctx context.Context, body io.Reader, emit func(playback.Event) bool) {
	type readResult struct {
		n   int
		err error
	}

	buf := make([]byte, defaultChunkSize)
	reads := make(chan readResult)
	go func() {
		defer close(reads)
		for {
			n, err := body.Read(buf)
			select {
			case reads <- readResult{n, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	started := time.Now()
	ready := false
	buffering := false
	lastProgress := time.Now()

	stall := time.NewTimer(p.stallTimeout)
	defer stall.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-stall.C:
			if ready && !buffering {
				buffering = true
				if !emit(playback.Event{Type: playback.EventBufferStart}) {
					return
				}
			}
			stall.Reset(p.stallTimeout)

		case r, ok := <-reads:
			if !ok {
				return
			}
			if r.n > 0 {
				if !stall.Stop() {
					select {
					case <-stall.C:
					default:
					}
				}
				stall.Reset(p.stallTimeout)

				if !ready {
					ready = true
					if !emit(playback.Event{Type: playback.EventReady}) {
						return
					}
				}
				if buffering {
					buffering = false
					if !emit(playback.Event{Type: playback.EventBufferEnd}) {
						return
					}
				}
				if time.Since(lastProgress) >= p.progressInterval {
					lastProgress = time.Now()
					elapsed := time.Since(started).Seconds()
					if !emit(playback.Event{Type: playback.EventProgress, Elapsed: elapsed}) {
						return
					}
				}
			}
			if r.err != nil {
				if r.err == io.EOF {
					if !ready {
						emit(playback.Event{Type: playback.EventError,
							Err: errors.New("stream ended before any media arrived")})
					}
					return
				}
				if ctx.Err() == nil {
					emit(playback.Event{Type: playback.EventError,
						Err: fmt.Errorf("stream read: %w", r.err)})
				}
				return
			}
		}
	}
}
