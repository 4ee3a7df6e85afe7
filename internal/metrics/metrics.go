// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus instrumentation for the viewer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Playlist metrics
	channelsParsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zaptv_channels_parsed",
		Help: "Number of channels in the last parsed playlist",
	})

	playlistRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zaptv_playlist_refresh_total",
		Help: "Playlist load attempts by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	playlistFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zaptv_playlist_fetch_duration_seconds",
		Help:    "Playlist fetch latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	playlistCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zaptv_playlist_cache_total",
		Help: "Playlist cache lookups by outcome",
	}, []string{"outcome"}) // outcome=hit|miss

	// Playback metrics
	playbackSessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zaptv_playback_sessions_total",
		Help: "Total playback sessions started",
	})

	playbackErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zaptv_playback_errors_total",
		Help: "Playback errors by classified kind",
	}, []string{"kind"})

	playbackRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zaptv_playback_retries_total",
		Help: "Manual playback retries",
	})

	watchdogAdvanceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zaptv_watchdog_advance_total",
		Help: "Auto-advance signals fired by watchdog kind",
	}, []string{"watchdog"}) // watchdog=loading|error

	proxyRewriteTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zaptv_proxy_rewrite_total",
		Help: "Stream URLs rewritten through the CORS proxy",
	})

	// EPG metrics
	epgLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zaptv_epg_lookups_total",
		Help: "EPG now/next lookups by outcome",
	}, []string{"outcome"}) // outcome=hit|miss
)

// RecordChannelsParsed sets the channel count of the active playlist.
func RecordChannelsParsed(count int) {
	channelsParsed.Set(float64(count))
}

// IncPlaylistRefresh records a playlist load attempt.
func IncPlaylistRefresh(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	playlistRefreshTotal.WithLabelValues(outcome).Inc()
}

// ObservePlaylistFetch records the latency of one playlist fetch.
func ObservePlaylistFetch(seconds float64) {
	playlistFetchDuration.Observe(seconds)
}

// IncPlaylistCache records a playlist cache lookup.
func IncPlaylistCache(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	playlistCacheTotal.WithLabelValues(outcome).Inc()
}

// IncPlaybackSession records a new playback session.
func IncPlaybackSession() {
	playbackSessionsTotal.Inc()
}

// IncPlaybackError records a classified playback error.
func IncPlaybackError(kind string) {
	playbackErrorsTotal.WithLabelValues(kind).Inc()
}

// IncPlaybackRetry records a manual retry.
func IncPlaybackRetry() {
	playbackRetriesTotal.Inc()
}

// IncWatchdogAdvance records an auto-advance fired by the named watchdog.
func IncWatchdogAdvance(watchdog string) {
	watchdogAdvanceTotal.WithLabelValues(watchdog).Inc()
}

// IncProxyRewrite records a CORS proxy rewrite.
func IncProxyRewrite() {
	proxyRewriteTotal.Inc()
}

// IncEPGLookup records an EPG now/next lookup.
func IncEPGLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	epgLookupsTotal.WithLabelValues(outcome).Inc()
}
