// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zaptv/zaptv/internal/app"
	"github.com/zaptv/zaptv/internal/log"
	"github.com/zaptv/zaptv/internal/playback"
)

// errorBody is the JSON error envelope for every non-2xx API response.
type errorBody struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := errorBody{
		Error:     code,
		Detail:    detail,
		RequestID: log.RequestIDFromContext(r.Context()),
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str(log.FieldEvent, "api.encode_error").
			Msg("failed to encode error response")
	}
}

// writeServiceError maps service-layer errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrChannelNotFound):
		writeError(w, r, http.StatusNotFound, "channel_not_found", err.Error())
	case errors.Is(err, app.ErrNoPlaylist):
		writeError(w, r, http.StatusConflict, "no_playlist", err.Error())
	case errors.Is(err, playback.ErrNoSession):
		writeError(w, r, http.StatusConflict, "no_session", err.Error())
	case errors.Is(err, playback.ErrSuperseded):
		writeError(w, r, http.StatusConflict, "session_superseded", err.Error())
	default:
		kind := playback.Classify(err)
		status := http.StatusInternalServerError
		if kind == playback.KindPlaylist || kind == playback.KindValidation {
			status = http.StatusBadGateway
			if kind == playback.KindValidation {
				status = http.StatusBadRequest
			}
		}
		writeError(w, r, status, string(kind), err.Error())
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str(log.FieldEvent, "api.encode_error").
			Msg("failed to encode response")
	}
}
