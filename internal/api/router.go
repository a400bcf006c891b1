package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Assistant fulfillment endpoint (bearer access token)
	r.Post("/fulfillment", s.handleFulfillment)

	// OAuth account linking
	r.Get("/auth", s.handleAuth)
	r.Post("/auth", s.handleAuth)
	r.Post("/token", s.handleToken)

	// HomeGraph relay (bearer access token)
	r.Post("/requestsync", s.handleRequestSync)
	r.Post("/reportstate", s.handleReportState)

	// Live execution events (bearer access token via query parameter)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
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
