// Package http is the transport layer: a go-chi router exposing venue,
// event, vote, queue, and playback operations over REST, plus a
// gorilla/websocket endpoint fanning out core/hub broadcasts to
// subscribed connections.
//
// Grounded on darthnorse-streammon's internal/server.Server (chi.Router
// field + functional-option constructor + routes() method registering
// everything in one place) and go-chi/httprate (via ManuGH-xg2g) for the
// coarse per-IP vote rate limit ahead of core/admission's domain-specific
// checks.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/beatline/beatline/internal/core/coordinator"
)

// Server is the HTTP/WS transport over one Coordinator.
type Server struct {
	router      chi.Router
	coordinator *coordinator.Coordinator
	corsOrigin  string
	voteRPM     int
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithCORSOrigin sets the single allowed CORS origin; "*" allows any.
func WithCORSOrigin(origin string) Option {
	return func(s *Server) { s.corsOrigin = origin }
}

// WithVoteRateLimit overrides the per-IP votes-per-minute cap enforced
// ahead of core/admission. Zero or negative disables the override and
// keeps the default.
func WithVoteRateLimit(rpm int) Option {
	return func(s *Server) {
		if rpm > 0 {
			s.voteRPM = rpm
		}
	}
}

// defaultVoteRPM is a coarse transport-level cap, independent of and
// looser than any single event's VotingRules; it exists to blunt
// scripted abuse before a request ever reaches core/admission.
const defaultVoteRPM = 120

// NewServer builds a Server wired to coord.
func NewServer(coord *coordinator.Coordinator, opts ...Option) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		coordinator: coord,
		corsOrigin:  "*",
		voteRPM:     defaultVoteRPM,
	}
	for _, o := range opts {
		o(s)
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(securityHeaders)
	s.router.Use(corsMiddleware(s.corsOrigin))
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) voteRateLimit() func(http.Handler) http.Handler {
	return httprate.Limit(
		s.voteRPM,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":   "RATE_LIMITED",
				"message": "too many requests, slow down",
			})
		}),
	)
}
