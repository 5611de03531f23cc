package handlers

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/statekeep/internal/logger"
	"github.com/marmos91/statekeep/pkg/artifact"
	"github.com/marmos91/statekeep/pkg/catalog"
)

// ArtifactsHandler serves the catalog views: stored artifacts and
// quarantined corrupt files.
type ArtifactsHandler struct {
	catalog catalog.Store
}

// NewArtifactsHandler creates an artifacts handler over a catalog store.
func NewArtifactsHandler(cat catalog.Store) *ArtifactsHandler {
	return &ArtifactsHandler{catalog: cat}
}

// List handles GET /api/artifacts - all catalogued artifacts.
func (h *ArtifactsHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.catalog.ListEntries(r.Context())
	if err != nil {
		logger.Error("catalog list failed", "error", err)
		InternalServerError(w, "Failed to list artifacts")
		return
	}
	writeJSON(w, http.StatusOK, okResponse(map[string]any{
		"count":     len(entries),
		"artifacts": entries,
	}))
}

// Quarantine handles GET /api/quarantine - all quarantine records.
func (h *ArtifactsHandler) Quarantine(w http.ResponseWriter, r *http.Request) {
	records, err := h.catalog.ListQuarantine(r.Context())
	if err != nil {
		logger.Error("quarantine list failed", "error", err)
		InternalServerError(w, "Failed to list quarantine records")
		return
	}
	writeJSON(w, http.StatusOK, okResponse(map[string]any{
		"count":      len(records),
		"quarantine": records,
	}))
}

// DeleteQuarantine handles DELETE /api/quarantine/{unit}/{key}/{ts}.
//
// ts is the quarantine time in nanoseconds since the epoch, as reported by
// the list endpoint. The preserved file is removed from disk along with its
// catalog record; a missing file is not an error (already cleaned up by an
// operator), a missing record is 404.
func (h *ArtifactsHandler) DeleteQuarantine(w http.ResponseWriter, r *http.Request) {
	id := artifact.NewID(chi.URLParam(r, "unit"), chi.URLParam(r, "key"))
	nanos, err := strconv.ParseInt(chi.URLParam(r, "ts"), 10, 64)
	if err != nil {
		BadRequest(w, "Invalid quarantine timestamp")
		return
	}
	at := time.Unix(0, nanos)

	records, err := h.catalog.ListQuarantine(r.Context())
	if err != nil {
		logger.Error("quarantine list failed", "error", err)
		InternalServerError(w, "Failed to list quarantine records")
		return
	}

	var found *catalog.QuarantineEntry
	for i := range records {
		if records[i].ID() == id && records[i].QuarantinedAt.UnixNano() == at.UnixNano() {
			found = &records[i]
			break
		}
	}
	if found == nil {
		NotFound(w, "Quarantine record not found")
		return
	}

	if err := os.Remove(found.Path); err != nil && !os.IsNotExist(err) {
		logger.Error("quarantine file removal failed", "path", found.Path, "error", err)
		InternalServerError(w, "Failed to remove quarantined file")
		return
	}
	if err := h.catalog.DeleteQuarantine(r.Context(), id, found.QuarantinedAt); err != nil {
		logger.Error("quarantine record removal failed", "artifact", id.String(), "error", err)
		InternalServerError(w, "Failed to remove quarantine record")
		return
	}

	logger.Info("quarantine record deleted",
		"unit", id.Unit,
		"key", id.Key,
		"quarantined_at", found.QuarantinedAt,
	)
	writeJSON(w, http.StatusOK, okResponse(map[string]string{
		"deleted": id.String(),
	}))
}
