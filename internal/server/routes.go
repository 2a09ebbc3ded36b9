package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/zsiec/theater/internal/errors"
	"github.com/zsiec/theater/pkg/version"
)

// maxOffsetStepMs bounds a single offset change from the API.
const maxOffsetStepMs = 10_000

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if err := s.writeJSON(w, http.StatusOK, version.GetInfo()); err != nil {
		s.logger.WithError(err).Error("Failed to encode version response")
	}
}

// handleStatus returns the last playback snapshot taken by the tick loop.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		s.writeError(w, r, errors.NewNotFoundError("playback engine"))
		return
	}
	st, ok := s.engine.Status()
	if !ok {
		s.writeError(w, r, errors.New(errors.ErrorTypeTimeout, "No status recorded yet", http.StatusServiceUnavailable))
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	if err := s.writeJSON(w, http.StatusOK, st); err != nil {
		s.logger.WithError(err).Error("Failed to encode status response")
	}
}

type offsetRequest struct {
	DeltaMs *int `json:"delta_ms"`
}

func (s *Server) handleOffset(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		s.writeError(w, r, errors.NewNotFoundError("playback engine"))
		return
	}
	var req offsetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errors.NewValidationError("invalid JSON body"))
		return
	}
	if req.DeltaMs == nil {
		s.writeError(w, r, errors.NewValidationError("delta_ms is required"))
		return
	}
	if d := *req.DeltaMs; d == 0 || d > maxOffsetStepMs || d < -maxOffsetStepMs {
		s.writeError(w, r, errors.NewValidationError(fmt.Sprintf("delta_ms must be non-zero and within ±%d", maxOffsetStepMs)))
		return
	}
	if err := s.engine.ApplyOffset(*req.DeltaMs); err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = s.writeJSON(w, http.StatusAccepted, map[string]interface{}{"queued": "offset", "delta_ms": *req.DeltaMs})
}

func (s *Server) handleTogglePreview(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		s.writeError(w, r, errors.NewNotFoundError("playback engine"))
		return
	}
	if err := s.engine.TogglePreview(); err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = s.writeJSON(w, http.StatusAccepted, map[string]interface{}{"queued": "preview_toggle"})
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		s.writeError(w, r, errors.NewNotFoundError("playback engine"))
		return
	}
	if err := s.engine.DeleteConfig(); err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = s.writeJSON(w, http.StatusAccepted, map[string]interface{}{"queued": "config_delete"})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, errors.New(errors.ErrorTypeValidation,
		fmt.Sprintf("Method %s not allowed", r.Method), http.StatusMethodNotAllowed))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.errorHandler.HandleError(w, r, err)
}
