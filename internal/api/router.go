package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/scenes", func(r chi.Router) {
			r.Get("/", s.handleListScenes)

			r.Route("/{selector}", func(r chi.Router) {
				r.Get("/", s.handleGetScene)
				r.Post("/execute", s.handleExecuteScene)
				r.Get("/executions", s.handleListSceneExecutions)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeBadRequest, "method not allowed")
	})

	return r
}

// handleHealth reports liveness, the result of the dependency check and
// the engine's queue.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	queue := map[string]any{
		"pending": s.deps.Engine.Pending(),
		"idle":    s.deps.Engine.Idle(),
	}

	if s.deps.Health != nil {
		if err := s.deps.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":  "degraded",
				"version": s.deps.Version,
				"queue":   queue,
				"error":   err.Error(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.deps.Version,
		"queue":   queue,
	})
}
