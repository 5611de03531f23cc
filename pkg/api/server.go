package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/statekeep/internal/logger"
	"github.com/marmos91/statekeep/pkg/api/auth"
)

// Server is the ops API HTTP server.
//
// Created stopped; Start serves until its context is cancelled, then shuts
// down gracefully.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer creates the ops API server.
//
// Defaults are applied here as well as at config load, so a directly
// constructed Config (tests, embedding hosts) still works. When operator
// auth is configured the JWT secret must be present and long enough;
// a misconfigured secret is an error rather than a silently open API.
func NewServer(config Config, deps Deps) (*Server, error) {
	config.applyDefaults()

	var tokens *auth.Service
	if config.AuthEnabled() {
		var err error
		tokens, err = auth.NewService(auth.Config{
			Secret:               config.GetJWTSecret(),
			AccessTokenDuration:  config.Auth.JWT.AccessTokenDuration,
			RefreshTokenDuration: config.Auth.JWT.RefreshTokenDuration,
		})
		if err != nil {
			return nil, fmt.Errorf("API auth configuration: %w", err)
		}
	}

	router := NewRouter(deps, config.Auth, tokens)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      router,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
	}, nil
}

// Start serves until ctx is cancelled or the listener fails.
//
// Cancellation triggers graceful shutdown; nil is returned on a clean stop.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("ops API listening", "port", s.config.Port, "auth", s.config.AuthEnabled())

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("ops API shutdown signal received")
		// A fresh context: the cancelled one would abort the drain instantly.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("ops API server failed: %w", err)
	}
}

// Stop shuts the server down gracefully. Safe to call more than once and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("ops API shutdown: %w", err)
			logger.Error("ops API shutdown error", "error", err)
		} else {
			logger.Info("ops API stopped")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int {
	return s.config.Port
}
