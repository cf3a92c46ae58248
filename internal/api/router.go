package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/subjects/{subjectID}/properties/{propertyKey}", func(r chi.Router) {
			r.Get("/state", s.handleGetState)
			r.Put("/state", s.handleSetState)
			r.Post("/command", s.handleCommand)
			r.Get("/history", s.handleGetHistory)
			r.Get("/aggregate", s.handleGetAggregate)
		})

		r.Route("/presence/{userID}", func(r chi.Router) {
			r.Get("/", s.handleGetPresence)
			r.Get("/history", s.handleGetPresenceHistory)
			r.Post("/arrive", s.handleArrive)
			r.Post("/depart", s.handleDepart)
			r.Post("/eta", s.handleRecordETA)
		})

		wsPath := s.wsCfg.Path
		if wsPath == "" {
			wsPath = "/ws"
		}
		r.Get(wsPath, s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
