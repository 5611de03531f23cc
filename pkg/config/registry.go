package config

import (
	"fmt"

	"github.com/marmos91/statekeep/internal/logger"
	"github.com/marmos91/statekeep/pkg/artifact"
	"github.com/marmos91/statekeep/pkg/registry"
)

// InitializeRegistry creates a fully configured Registry from the provided configuration.
//
// Every unit in cfg.Units is registered with its persisted keys and codec
// kinds. Disabled units are registered too: the coordinator needs to know
// them so their saves are dropped and their loads report no prior state,
// rather than failing as unknown units.
//
// Returns:
//   - *registry.Registry: Fully initialized registry
//   - error: If no units are configured, a unit is invalid, or a codec name is unknown
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	reg, err := config.InitializeRegistry(cfg)
//	if err != nil {
//	    log.Fatalf("Failed to initialize registry: %v", err)
//	}
func InitializeRegistry(cfg *Config) (*registry.Registry, error) {
	logger.Debug("Initializing unit registry from configuration")

	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}
	if len(cfg.Units) == 0 {
		return nil, fmt.Errorf("no units configured: at least one learning unit is required")
	}

	reg := registry.New()

	for i, unitCfg := range cfg.Units {
		logger.Debug("Registering unit", "id", unitCfg.ID, "enabled", unitCfg.IsEnabled(), "async", unitCfg.IsAsync(), "keys", len(unitCfg.Keys))

		if unitCfg.ID == "" {
			return nil, fmt.Errorf("unit #%d: id cannot be empty", i+1)
		}
		if len(unitCfg.Keys) == 0 {
			return nil, fmt.Errorf("unit %q: at least one key is required", unitCfg.ID)
		}

		keys := make(map[string]artifact.Kind, len(unitCfg.Keys))
		for key, codec := range unitCfg.Keys {
			kind, err := artifact.ParseKind(codec)
			if err != nil {
				return nil, fmt.Errorf("unit %q key %q: %w", unitCfg.ID, key, err)
			}
			keys[key] = kind
		}

		unit := registry.Unit{
			ID:      unitCfg.ID,
			Enabled: unitCfg.IsEnabled(),
			Async:   unitCfg.IsAsync(),
			Keys:    keys,
		}

		if err := reg.RegisterUnit(unit); err != nil {
			return nil, fmt.Errorf("failed to register unit %q: %w", unitCfg.ID, err)
		}

		logger.Debug("Unit registered successfully", "id", unitCfg.ID)
	}

	logger.Info("Registered learning units", "count", len(reg.Units()))

	return reg, nil
}
