package http

import (
	"net/http"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/beatline/beatline/internal/domain/event"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListVenueEvents(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueId")
	events, err := s.coordinator.ListVenueEvents(r.Context(), venueID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

type createEventRequest struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	ScheduledStart time.Time         `json:"scheduledStart"`
	ScheduledEnd   time.Time         `json:"scheduledEnd"`
	PlaylistSource string            `json:"playlistSource"`
	PlaylistConfig map[string]string `json:"playlistConfig"`
	VotingRules    *event.VotingRules `json:"votingRules"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueId")

	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	e := event.Event{
		ID:             uuid.New().String(),
		VenueID:        venueID,
		Name:           req.Name,
		Description:    req.Description,
		Status:         event.StatusDraft,
		ScheduledStart: req.ScheduledStart,
		ScheduledEnd:   req.ScheduledEnd,
		PlaylistSource: req.PlaylistSource,
		PlaylistConfig: req.PlaylistConfig,
	}
	if req.VotingRules != nil {
		e.VotingRules = *req.VotingRules
	} else if err := defaults.Set(&e.VotingRules); err != nil {
		writeError(w, err)
		return
	}

	if err := s.coordinator.Lifecycle().Create(r.Context(), e); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	e, err := s.coordinator.FindEvent(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	current, err := s.coordinator.FindEvent(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}

	updated := *current
	updated.Name = req.Name
	updated.Description = req.Description
	updated.ScheduledStart = req.ScheduledStart
	updated.ScheduledEnd = req.ScheduledEnd
	updated.PlaylistSource = req.PlaylistSource
	updated.PlaylistConfig = req.PlaylistConfig
	if req.VotingRules != nil {
		updated.VotingRules = *req.VotingRules
	}

	if err := s.coordinator.Lifecycle().Update(r.Context(), updated); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if err := s.coordinator.Lifecycle().Delete(r.Context(), eventID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActivateEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	e, err := s.coordinator.Activate(r.Context(), eventID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleEndEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	e, err := s.coordinator.End(r.Context(), eventID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCancelEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	e, err := s.coordinator.Cancel(r.Context(), eventID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
