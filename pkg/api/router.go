// Package api implements the statekeep ops HTTP server: health probes,
// read-only views over the artifact catalog and run reports, the Prometheus
// metrics endpoint, and token-gated mutating operations.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/statekeep/internal/logger"
	"github.com/marmos91/statekeep/pkg/api/auth"
	"github.com/marmos91/statekeep/pkg/api/handlers"
	"github.com/marmos91/statekeep/pkg/api/middleware"
	"github.com/marmos91/statekeep/pkg/catalog"
	"github.com/marmos91/statekeep/pkg/metrics"
	"github.com/marmos91/statekeep/pkg/report"
)

// Deps are the collaborators the API serves. Every field is optional;
// routes for absent collaborators are simply not mounted. The ops console
// runs with stores only, an embedding host can add its live coordinator.
type Deps struct {
	// Catalog backs /api/artifacts and /api/quarantine.
	Catalog catalog.Store

	// Reports backs /api/runs.
	Reports *report.Store

	// Coordinator backs /api/stats and /api/flush.
	Coordinator handlers.Coordinator
}

// NewRouter builds the chi router with the full middleware stack and all
// routes the dependencies support. tokens is nil when operator auth is not
// configured; mutating routes are then rejected with 401.
func NewRouter(deps Deps, authCfg AuthConfig, tokens *auth.Service) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(deps.Catalog, deps.Reports)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
		r.Get("/stores", healthHandler.Stores)
	})

	if metrics.IsEnabled() {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	if tokens != nil {
		authHandler := handlers.NewAuthHandler(authCfg.PasswordHash, tokens)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/token", authHandler.Token)
			r.Post("/refresh", authHandler.Refresh)
		})
	}

	r.Route("/api", func(r chi.Router) {
		if deps.Catalog != nil {
			artifactsHandler := handlers.NewArtifactsHandler(deps.Catalog)
			r.Get("/artifacts", artifactsHandler.List)
			r.Get("/quarantine", artifactsHandler.Quarantine)
			r.With(requireAuth(tokens)).
				Delete("/quarantine/{unit}/{key}/{ts}", artifactsHandler.DeleteQuarantine)
		}
		if deps.Reports != nil {
			runsHandler := handlers.NewRunsHandler(deps.Reports)
			r.Get("/runs", runsHandler.List)
			r.Get("/runs/{id}", runsHandler.Get)
		}
		if deps.Coordinator != nil {
			coordHandler := handlers.NewCoordinatorHandler(deps.Coordinator)
			r.Get("/stats", coordHandler.Stats)
			r.With(requireAuth(tokens)).Post("/flush", coordHandler.Flush)
		}
	})

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requireAuth gates mutating routes. Without a token service the route
// stays mounted but always answers 401, so probing it reveals nothing
// about whether auth is merely misconfigured.
func requireAuth(tokens *auth.Service) func(http.Handler) http.Handler {
	if tokens == nil {
		return func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "Authentication not configured", http.StatusUnauthorized)
			})
		}
	}
	return middleware.BearerAuth(tokens)
}

// requestLogger logs every request through the internal logger: start at
// DEBUG, completion with status and duration at INFO.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chimiddleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
