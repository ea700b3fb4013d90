package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type initializePlaybackRequest struct {
	VenueID  string `json:"venueId"`
	DeviceID string `json:"deviceId"`
}

func (s *Server) handleInitializePlayback(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	var req initializePlaybackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := s.coordinator.InitializePlayback(r.Context(), eventID, req.VenueID, req.DeviceID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlaybackStatus(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	status, err := s.coordinator.PlaybackStatus(eventID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if err := s.coordinator.Skip(r.Context(), eventID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if err := s.coordinator.Pause(r.Context(), eventID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if err := s.coordinator.Resume(r.Context(), eventID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlayNext(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if err := s.coordinator.PlayNext(r.Context(), eventID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStopPlayback(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if err := s.coordinator.StopPlayback(r.Context(), eventID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setAutoPlayRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleSetAutoPlay(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	var req setAutoPlayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := s.coordinator.SetAutoPlay(eventID, req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
