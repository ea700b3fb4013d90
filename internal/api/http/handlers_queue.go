package http

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/beatline/beatline/internal/domain/queueitem"
)

func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	rows, err := s.coordinator.Queue().GetQueue(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

type voteRequest struct {
	SessionID  string `json:"sessionId"`
	TrackID    string `json:"trackId"`
	TrackURI   string `json:"trackUri"`
	TrackName  string `json:"trackName"`
	ArtistName string `json:"artistName"`
	AlbumName  string `json:"albumName"`
	AlbumArt   string `json:"albumArt"`
	DurationMs int64  `json:"durationMs"`
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	var req voteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.SessionID == "" || req.TrackID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sessionId and trackId are required"})
		return
	}

	dto := queueitem.AddVote{
		TrackID:    req.TrackID,
		TrackURI:   req.TrackURI,
		TrackName:  req.TrackName,
		ArtistName: req.ArtistName,
		AlbumName:  req.AlbumName,
		AlbumArt:   req.AlbumArt,
		Duration:   time.Duration(req.DurationMs) * time.Millisecond,
	}

	item, err := s.coordinator.Vote(r.Context(), eventID, req.SessionID, clientIP(r), dto, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleRemoveQueueItem(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	trackID := chi.URLParam(r, "trackId")
	if err := s.coordinator.RemoveFromQueue(r.Context(), eventID, trackID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if err := s.coordinator.ClearQueue(r.Context(), eventID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkQueueItemPlayed(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	trackID := chi.URLParam(r, "trackId")
	if err := s.coordinator.MarkQueueItemPlayed(r.Context(), eventID, trackID, time.Now()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type skipQueueItemRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleSkipQueueItem(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	trackID := chi.URLParam(r, "trackId")
	var req skipQueueItemRequest
	_ = decodeJSON(r, &req) // reason is optional; a missing/empty body is fine
	if err := s.coordinator.SkipQueueItem(r.Context(), eventID, trackID, req.Reason, time.Now()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNextTrack(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	item, err := s.coordinator.NextTrack(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type queueStatsResponse struct {
	Size       int `json:"size"`
	TotalVotes int `json:"totalVotes"`
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	size, totalVotes, err := s.coordinator.QueueStats(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queueStatsResponse{Size: size, TotalVotes: totalVotes})
}

type banRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handleBanSession(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	var req banRequest
	if err := decodeJSON(r, &req); err != nil || req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sessionId is required"})
		return
	}
	if err := s.coordinator.Ban(eventID, req.SessionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnbanSession(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	var req banRequest
	if err := decodeJSON(r, &req); err != nil || req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sessionId is required"})
		return
	}
	if err := s.coordinator.Unban(eventID, req.SessionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// clientIP extracts the caller's address for C1's per-network cap,
// preferring the first X-Forwarded-For entry over RemoteAddr since this
// service typically sits behind a venue's reverse proxy. The entry is
// returned as sent, up to the first comma; it is not parsed as an IP.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := len(xff); idx > 0 {
			for i, c := range xff {
				if c == ',' {
					return xff[:i]
				}
			}
			return xff
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
