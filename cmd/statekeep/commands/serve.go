package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/marmos91/statekeep/internal/logger"
	"github.com/marmos91/statekeep/internal/telemetry"
	"github.com/marmos91/statekeep/pkg/api"
	"github.com/marmos91/statekeep/pkg/catalog"
	"github.com/marmos91/statekeep/pkg/config"
	"github.com/marmos91/statekeep/pkg/metrics"
	"github.com/marmos91/statekeep/pkg/report"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/statekeep/pkg/metrics/prometheus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ops console",
	Long: `Serve the statekeep ops console: health probes, read-only views over
the artifact catalog and run reports, and the Prometheus metrics endpoint.

The console opens the catalog and report stores from the configuration and
serves until interrupted. It does not run a coordinator; saving and loading
is the embedding host's job. Log level changes in the config file are picked
up live without a restart.

Examples:
  # Serve with the default config location
  statekeep serve

  # Serve with a custom config
  statekeep serve --config /etc/statekeep/config.yaml

  # Override the log level for one run
  STATEKEEP_LOGGING_LEVEL=DEBUG statekeep serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "statekeep",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "statekeep",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled")
	} else {
		logger.Info("Metrics collection disabled")
	}

	logger.Info("Configuration loaded", "source", configSource(GetConfigFile()))

	cat, err := OpenCatalog(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() {
		if err := cat.Close(); err != nil {
			logger.Error("catalog close error", "error", err)
		}
	}()

	reports, err := report.New(&cfg.Reports)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}
	defer func() {
		if err := reports.Close(); err != nil {
			logger.Error("report store close error", "error", err)
		}
	}()

	if !cfg.API.IsEnabled() {
		return fmt.Errorf("the ops console requires api.enabled: true")
	}
	server, err := api.NewServer(cfg.API, api.Deps{
		Catalog: cat,
		Reports: reports,
	})
	if err != nil {
		return err
	}

	// Live log-level reload when the config file changes.
	stopWatch, err := watchLogLevel(GetConfigFile())
	if err != nil {
		logger.Warn("config watch unavailable", "error", err)
	} else {
		defer stopWatch()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Ops console running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received")
		cancel()
		if err := <-serverDone; err != nil {
			return err
		}
	case err := <-serverDone:
		if err != nil {
			return err
		}
	}
	logger.Info("Ops console stopped")
	return nil
}

// OpenCatalog opens the configured catalog backend.
func OpenCatalog(ctx context.Context, cfg *config.Config) (catalog.Store, error) {
	switch cfg.Catalog.Backend {
	case config.CatalogBackendPostgres:
		return catalog.OpenPostgres(ctx, cfg.Catalog.Postgres)
	default:
		return catalog.OpenBadger(cfg.Catalog.Badger)
	}
}

// watchLogLevel watches the config file and re-applies logging.level on
// change. Editors replace files instead of writing in place, so the watch
// is on the directory and Create events re-arm it.
func watchLogLevel(configFile string) (func(), error) {
	path := configFile
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := config.Load(configFile)
				if err != nil {
					logger.Warn("config reload failed", "error", err)
					continue
				}
				level := strings.ToUpper(cfg.Logging.Level)
				if level != logger.CurrentLevel().String() {
					logger.SetLevel(level)
					logger.Info("log level changed", "level", level)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watch error", "error", err)
			}
		}
	}()

	return func() { _ = watcher.Close() }, nil
}
