// Package config implements the `statekeep config` command group.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for configuration operations.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
	Long:  `Display the effective configuration or generate its JSON schema.`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(schemaCmd)
}
