package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-scenes/internal/automation"
)

// Execution history page sizes.
const (
	defaultExecutionLimit = 10
	maxExecutionLimit     = 100
)

// sceneSelector extracts and validates the {selector} URL parameter.
func sceneSelector(w http.ResponseWriter, r *http.Request) (string, bool) {
	selector := chi.URLParam(r, "selector")
	if err := automation.ValidateSelector(selector); err != nil {
		writeBadRequest(w, "invalid scene selector")
		return "", false
	}
	return selector, true
}

// handleListScenes returns every registered scene sorted by selector.
func (s *Server) handleListScenes(w http.ResponseWriter, _ *http.Request) {
	scenes := s.deps.Engine.Registry().ListScenes()
	writeJSON(w, http.StatusOK, map[string]any{"scenes": scenes, "count": len(scenes)})
}

func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request) {
	selector, ok := sceneSelector(w, r)
	if !ok {
		return
	}

	scene, err := s.deps.Engine.Registry().GetScene(selector)
	if err != nil {
		if errors.Is(err, automation.ErrSceneNotFound) {
			writeNotFound(w, "scene not found")
			return
		}
		writeInternalError(w, "failed to get scene")
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

// handleExecuteScene queues a new root execution and returns its scope ID.
// Device commands and chained scenes run after the response; their
// records appear under /executions.
func (s *Server) handleExecuteScene(w http.ResponseWriter, r *http.Request) {
	selector, ok := sceneSelector(w, r)
	if !ok {
		return
	}

	if _, err := s.deps.Engine.Registry().GetScene(selector); err != nil {
		if errors.Is(err, automation.ErrSceneNotFound) {
			writeNotFound(w, "scene not found")
			return
		}
		writeInternalError(w, "failed to get scene")
		return
	}

	scope := automation.NewScope()
	if err := s.deps.Engine.Execute(r.Context(), selector, scope); err != nil {
		if errors.Is(err, automation.ErrEngineClosed) {
			writeUnavailable(w, "scene engine is shutting down")
			return
		}
		writeInternalError(w, "failed to queue scene")
		return
	}

	s.logger.Info("scene requested over HTTP",
		"scene", selector,
		"root_id", scope.ID(),
		"request_id", r.Context().Value(ctxKeyRequestID),
	)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"scene":   selector,
		"root_id": scope.ID(),
		"status":  "accepted",
	})
}

// handleListSceneExecutions returns the newest execution records of a scene.
func (s *Server) handleListSceneExecutions(w http.ResponseWriter, r *http.Request) {
	selector, ok := sceneSelector(w, r)
	if !ok {
		return
	}

	limit := defaultExecutionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxExecutionLimit {
			writeBadRequest(w, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	executions, err := s.deps.Executions.ListExecutions(r.Context(), selector, limit)
	if err != nil {
		writeInternalError(w, "failed to list executions")
		return
	}
	if executions == nil {
		executions = []automation.SceneExecution{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"executions": executions, "count": len(executions)})
}
