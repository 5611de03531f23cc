package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/statekeep/internal/logger"
	"github.com/marmos91/statekeep/pkg/report"
)

// Limits for the run list endpoint.
const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// RunsHandler serves persisted exclusive-run reports.
type RunsHandler struct {
	store *report.Store
}

// NewRunsHandler creates a runs handler over a report store.
func NewRunsHandler(store *report.Store) *RunsHandler {
	return &RunsHandler{store: store}
}

// List handles GET /api/runs?limit=N - most recent runs first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			BadRequest(w, "Invalid limit")
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		logger.Error("run list failed", "error", err)
		InternalServerError(w, "Failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, okResponse(map[string]any{
		"count": len(runs),
		"runs":  runs,
	}))
}

// Get handles GET /api/runs/{id} - one run with its per-artifact outcomes.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, report.ErrRunNotFound) {
			NotFound(w, "Run not found")
			return
		}
		logger.Error("run lookup failed", "error", err)
		InternalServerError(w, "Failed to get run")
		return
	}
	writeJSON(w, http.StatusOK, okResponse(run))
}
