// SPDX-License-Identifier: MIT

// Package api exposes the viewer over HTTP: catalog queries, playback
// control, preferences, guide lookups and the operational endpoints.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/zaptv/zaptv/internal/app"
	"github.com/zaptv/zaptv/internal/health"
	"github.com/zaptv/zaptv/internal/log"
)

// Options configures the HTTP server surface.
type Options struct {
	// RateLimit is requests per minute per client IP, 0 disables.
	RateLimit int
	Health    *health.Manager
	Logger    *zerolog.Logger
}

// Server holds the handler dependencies.
type Server struct {
	svc    *app.Service
	health *health.Manager
	opts   Options
	logger zerolog.Logger
}

func NewServer(svc *app.Service, opts Options) *Server {
	s := &Server{
		svc:    svc,
		health: opts.Health,
		opts:   opts,
		logger: log.WithComponent("api"),
	}
	if opts.Logger != nil {
		s.logger = *opts.Logger
	}
	if s.health == nil {
		s.health = health.NewManager("")
	}
	return s
}

// Router builds the chi router with the full middleware stack.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(httpMetrics)
	r.Use(requestLogger)
	r.Use(rateLimit(s.opts.RateLimit))

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/channels", s.handleChannels)
		r.Get("/channels/{id}", s.handleChannel)
		r.Delete("/channels/{id}", s.handleRemoveChannel)
		r.Get("/channels/{id}/epg", s.handleChannelEPG)
		r.Post("/channels/{id}/select", s.handleSelect)
		r.Post("/channels/{id}/favorite", s.handleToggleFavorite)

		r.Get("/groups", s.handleGroups)
		r.Get("/favorites", s.handleFavorites)

		r.Get("/playback", s.handlePlaybackStatus)
		r.Post("/playback/retry", s.handleRetry)
		r.Post("/playback/stop", s.handleStop)
		r.Post("/playback/next", s.handleNext)
		r.Post("/playback/prev", s.handlePrev)
		r.Get("/playback/events", s.handleEvents)

		r.Post("/playlist", s.handleLoadPlaylist)
		r.Post("/playlist/reload", s.handleReload)
		r.Get("/playlist/history", s.handleHistory)
		r.Get("/playlist/export", s.handleExport)

		r.Get("/continue-watching", s.handleContinueWatching)
		r.Delete("/continue-watching", s.handleRemoveContinueWatching)

		r.Get("/preferences/dark-mode", s.handleGetDarkMode)
		r.Put("/preferences/dark-mode", s.handleSetDarkMode)
	})

	return r
}

// HTTPServer wraps the router in an http.Server with sane timeouts. Write
// timeouts are left unset so the event stream can run indefinitely.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
