// Package commands implements the statekeep CLI: config scaffolding, the
// ops console server, and offline inspection of a statekeep data directory.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/statekeep/cmd/statekeep/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "statekeep",
	Short: "statekeep - persistence coordinator for learning state",
	Long: `statekeep persists the mutable state of many concurrently running
learning units (tables, weights, experience buffers, populations) under a
shared storage root, coordinating parallel per-unit saves and loads with
rare whole-system operations like startup, shutdown and stop-and-save.

The embedding host drives saves and loads through the library; this CLI
covers the operational side: scaffolding configuration, serving the ops
console, and inspecting artifacts, quarantine records and run reports.

Use "statekeep [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/statekeep/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(passwdCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(completionCmd)

	// Hide the default completion command (we provide our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
