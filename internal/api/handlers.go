// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zaptv/zaptv/internal/catalog"
	"github.com/zaptv/zaptv/internal/log"
	"github.com/zaptv/zaptv/internal/m3u"
)

func (s *Server) channelID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		writeError(w, r, http.StatusBadRequest, "invalid_channel_id",
			"channel id must be a positive integer")
		return 0, false
	}
	return id, true
}

// GET /api/channels?q=&group=&sort=
func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	group := r.URL.Query().Get("group")
	sortBy := catalog.SortKey(r.URL.Query().Get("sort"))
	switch sortBy {
	case "", catalog.SortByTitle, catalog.SortByGroup:
	default:
		writeError(w, r, http.StatusBadRequest, "invalid_sort",
			"sort must be one of: title, group")
		return
	}

	channels := s.svc.Search(query, group, sortBy)
	if channels == nil {
		channels = []m3u.Channel{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"channels": channels,
		"count":    len(channels),
	})
}

// DELETE /api/channels/{id}
func (s *Server) handleRemoveChannel(w http.ResponseWriter, r *http.Request) {
	id, ok := s.channelID(w, r)
	if !ok {
		return
	}
	if err := s.svc.RemoveChannel(id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/channels/{id}
func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	id, ok := s.channelID(w, r)
	if !ok {
		return
	}
	ch, found := s.svc.ChannelByID(id)
	if !found {
		writeError(w, r, http.StatusNotFound, "channel_not_found",
			fmt.Sprintf("channel %d is not in the catalog", id))
		return
	}
	writeJSON(w, r, http.StatusOK, ch)
}

// GET /api/groups
func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	groups := s.svc.Groups()
	out := make([]map[string]any, 0, len(groups))
	for _, name := range s.svc.Categories() {
		out = append(out, map[string]any{
			"name":  name,
			"count": len(groups[name]),
		})
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"groups": out})
}

// POST /api/channels/{id}/select
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, ok := s.channelID(w, r)
	if !ok {
		return
	}
	snap, err := s.svc.Select(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, snap)
}

// GET /api/playback
func (s *Server) handlePlaybackStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.svc.Status())
}

// POST /api/playback/retry
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Retry()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, snap)
}

// POST /api/playback/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.svc.Stop()
	writeJSON(w, r, http.StatusOK, s.svc.Status())
}

// POST /api/playback/next
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Next()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, snap)
}

// POST /api/playback/prev
func (s *Server) handlePrev(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Prev()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, snap)
}

// GET /api/playback/events streams automatic advance notifications as
// server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming_unsupported",
			"response writer does not support streaming")
		return
	}

	events, cancel := s.svc.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case adv, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(adv)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: advance\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

type loadPlaylistRequest struct {
	URL  string `json:"url,omitempty"`
	Path string `json:"path,omitempty"`
}

// POST /api/playlist loads a playlist from a URL, a server-side path, or an
// uploaded M3U body (content type other than application/json).
func (s *Server) handleLoadPlaylist(w http.ResponseWriter, r *http.Request) {
	var (
		count int
		err   error
	)

	if ct := r.Header.Get("Content-Type"); ct == "application/json" {
		var req loadPlaylistRequest
		if derr := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); derr != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", derr.Error())
			return
		}
		switch {
		case req.URL != "":
			count, err = s.svc.LoadFromURL(r.Context(), req.URL)
		case req.Path != "":
			count, err = s.svc.LoadFromFile(req.Path)
		default:
			writeError(w, r, http.StatusBadRequest, "invalid_request",
				"either url or path must be set")
			return
		}
	} else {
		count, err = s.svc.LoadFromReader(r.Body)
	}

	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"channels": count})
}

// POST /api/playlist/reload
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	count, err := s.svc.Reload(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"channels": count})
}

// GET /api/playlist/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.svc.PlaylistHistory()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if history == nil {
		history = []string{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"urls": history})
}

// GET /api/playlist/export?group=
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "audio/x-mpegurl")
	w.Header().Set("Content-Disposition", `attachment; filename="zaptv.m3u"`)
	if err := s.svc.ExportM3U(w, r.URL.Query().Get("group")); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str(log.FieldEvent, "api.export_failed").
			Msg("playlist export failed")
	}
}

// POST /api/channels/{id}/favorite
func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := s.channelID(w, r)
	if !ok {
		return
	}
	on, err := s.svc.ToggleFavorite(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"favorite": on})
}

// GET /api/favorites
func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := s.svc.Favorites()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if favs == nil {
		favs = []m3u.Channel{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"channels": favs})
}

// GET /api/continue-watching
func (s *Server) handleContinueWatching(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ContinueWatching()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"entries": list})
}

// DELETE /api/continue-watching?url=
func (s *Server) handleRemoveContinueWatching(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "url query parameter required")
		return
	}
	if err := s.svc.RemoveContinueWatching(url); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/channels/{id}/epg?at=RFC3339
func (s *Server) handleChannelEPG(w http.ResponseWriter, r *http.Request) {
	id, ok := s.channelID(w, r)
	if !ok {
		return
	}
	at := time.Now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request",
				"at must be an RFC 3339 timestamp")
			return
		}
		at = parsed
	}

	nn, found := s.svc.NowNext(id, at)
	if !found {
		writeError(w, r, http.StatusNotFound, "epg_not_found",
			"no guide data for this channel")
		return
	}
	writeJSON(w, r, http.StatusOK, nn)
}

type darkModeBody struct {
	Enabled bool `json:"enabled"`
}

// GET /api/preferences/dark-mode
func (s *Server) handleGetDarkMode(w http.ResponseWriter, r *http.Request) {
	on, err := s.svc.DarkMode()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, darkModeBody{Enabled: on})
}

// PUT /api/preferences/dark-mode
func (s *Server) handleSetDarkMode(w http.ResponseWriter, r *http.Request) {
	var body darkModeBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.svc.SetDarkMode(body.Enabled); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, body)
}
