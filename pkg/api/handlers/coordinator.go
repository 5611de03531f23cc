package handlers

import (
	"context"
	"net/http"

	"github.com/marmos91/statekeep/internal/logger"
	"github.com/marmos91/statekeep/pkg/coordinator"
)

// Coordinator is the slice of the live coordinator the API needs. The ops
// console (`statekeep serve`) runs without one; stats and flush endpoints
// exist only when the embedding host wires its coordinator in.
type Coordinator interface {
	Stats() coordinator.Stats
	FlushAll(ctx context.Context) (*coordinator.Report, error)
}

// CoordinatorHandler serves live-coordinator endpoints.
type CoordinatorHandler struct {
	coord Coordinator
}

// NewCoordinatorHandler creates a coordinator handler.
func NewCoordinatorHandler(coord Coordinator) *CoordinatorHandler {
	return &CoordinatorHandler{coord: coord}
}

// Stats handles GET /api/stats - point-in-time operational snapshot.
func (h *CoordinatorHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse(h.coord.Stats()))
}

// Flush handles POST /api/flush - flush every dirty artifact now.
//
// Runs as an exclusive operation, so it waits for quiescence like any other
// whole-system save. The report is returned even when some artifacts failed;
// per-artifact outcomes tell the operator what stayed dirty.
func (h *CoordinatorHandler) Flush(w http.ResponseWriter, r *http.Request) {
	rep, err := h.coord.FlushAll(r.Context())
	if err != nil {
		logger.Error("manual flush failed", "error", err)
		InternalServerError(w, "Flush failed: "+err.Error())
		return
	}

	status := http.StatusOK
	if rep.Failed() > 0 {
		// Partial failure still returns the report; 207 tells scripts to look.
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, okResponse(rep))
}
