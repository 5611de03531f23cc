package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/marmos91/statekeep/pkg/artifact"
	"github.com/marmos91/statekeep/pkg/catalog"
	"github.com/marmos91/statekeep/pkg/report"
)

// HealthHandler handles the unauthenticated health probes.
//
//   - Liveness: is the server process running?
//   - Readiness: are the configured stores reachable?
//   - Stores: per-store health with probe latency
type HealthHandler struct {
	catalog catalog.Store
	reports *report.Store
}

// NewHealthHandler creates a health handler. Either store may be nil when
// the deployment does not configure it; nil stores are reported as
// "not configured" and do not fail readiness.
func NewHealthHandler(cat catalog.Store, rep *report.Store) *HealthHandler {
	return &HealthHandler{catalog: cat, reports: rep}
}

// Liveness handles GET /health. Always 200 while the HTTP server responds.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "statekeep",
	}))
}

// Readiness handles GET /health/ready. 200 when every configured store
// answers a probe, 503 otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.catalog != nil {
		if err := probeCatalog(ctx, h.catalog); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("catalog: "+err.Error()))
			return
		}
	}
	if h.reports != nil {
		if err := probeReports(ctx, h.reports); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("reports: "+err.Error()))
			return
		}
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]bool{
		"catalog": h.catalog != nil,
		"reports": h.reports != nil,
	}))
}

// StoreHealth is the health status of one backing store.
type StoreHealth struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// StoresResponse is the detailed store health response.
type StoresResponse struct {
	Stores []StoreHealth `json:"stores"`
}

// Stores handles GET /health/stores. Probes each configured store and
// reports per-store status with latency; 503 when any probe fails.
func (h *HealthHandler) Stores(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := StoresResponse{Stores: make([]StoreHealth, 0, 2)}
	allHealthy := true

	if h.catalog != nil {
		health := probed(ctx, "catalog", func(ctx context.Context) error {
			return probeCatalog(ctx, h.catalog)
		})
		allHealthy = allHealthy && health.Status == "healthy"
		response.Stores = append(response.Stores, health)
	}
	if h.reports != nil {
		health := probed(ctx, "reports", func(ctx context.Context) error {
			return probeReports(ctx, h.reports)
		})
		allHealthy = allHealthy && health.Status == "healthy"
		response.Stores = append(response.Stores, health)
	}

	if allHealthy {
		writeJSON(w, http.StatusOK, healthyResponse(response))
	} else {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(response))
	}
}

func probed(ctx context.Context, name string, probe func(context.Context) error) StoreHealth {
	start := time.Now()
	err := probe(ctx)
	health := StoreHealth{Name: name, Latency: time.Since(start).String()}
	if err != nil {
		health.Status = "unhealthy"
		health.Error = err.Error()
	} else {
		health.Status = "healthy"
	}
	return health
}

// probeCatalog issues a point lookup for an id that cannot be registered;
// ErrNotFound proves the store answered.
func probeCatalog(ctx context.Context, cat catalog.Store) error {
	_, err := cat.GetEntry(ctx, artifact.NewID("_health", "_probe"))
	if errors.Is(err, catalog.ErrNotFound) {
		return nil
	}
	return err
}

func probeReports(ctx context.Context, rep *report.Store) error {
	_, err := rep.ListRuns(ctx, 1)
	return err
}
