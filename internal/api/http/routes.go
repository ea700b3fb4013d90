package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/venues/{venueId}", func(r chi.Router) {
			r.Get("/events", s.handleListVenueEvents)
			r.Post("/events", s.handleCreateEvent)
		})

		r.Route("/events/{eventId}", func(r chi.Router) {
			r.Get("/", s.handleGetEvent)
			r.Put("/", s.handleUpdateEvent)
			r.Delete("/", s.handleDeleteEvent)

			r.Post("/activate", s.handleActivateEvent)
			r.Post("/end", s.handleEndEvent)
			r.Post("/cancel", s.handleCancelEvent)

			r.Post("/playback/initialize", s.handleInitializePlayback)
			r.Get("/playback", s.handlePlaybackStatus)
			r.Post("/playback/skip", s.handleSkip)
			r.Post("/playback/pause", s.handlePause)
			r.Post("/playback/resume", s.handleResume)
			r.Post("/playback/play-next", s.handlePlayNext)
			r.Post("/playback/stop", s.handleStopPlayback)
			r.Post("/playback/autoplay", s.handleSetAutoPlay)

			r.Route("/queue", func(r chi.Router) {
				r.Get("/", s.handleGetQueue)
				r.Delete("/", s.handleClearQueue)
				r.Get("/next", s.handleNextTrack)
				r.Get("/stats", s.handleQueueStats)
				r.Route("/{trackId}", func(r chi.Router) {
					r.Delete("/", s.handleRemoveQueueItem)
					r.Post("/played", s.handleMarkQueueItemPlayed)
					r.Post("/skip", s.handleSkipQueueItem)
				})
			})
			r.With(s.voteRateLimit()).Post("/votes", s.handleVote)
			r.Post("/sessions/ban", s.handleBanSession)
			r.Post("/sessions/unban", s.handleUnbanSession)

			r.Get("/ws", s.handleWebsocket)
		})
	})
}
