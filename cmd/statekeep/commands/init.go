package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/statekeep/internal/cli/prompt"
	"github.com/marmos91/statekeep/pkg/api"
	"github.com/marmos91/statekeep/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample statekeep configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/statekeep/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  statekeep init

  # Initialize with custom path
  statekeep init --config /etc/statekeep/config.yaml

  # Force overwrite existing config
  statekeep init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	target := configFile
	if target == "" {
		target = config.GetDefaultConfigPath()
	}

	// An existing file needs explicit confirmation before being replaced.
	if _, err := os.Stat(target); err == nil && !initForce {
		ok, err := prompt.Confirm(fmt.Sprintf("Configuration file %s exists, overwrite", target), false)
		if err != nil {
			if prompt.IsAborted(err) {
				return fmt.Errorf("aborted")
			}
			return err
		}
		if !ok {
			fmt.Println("Keeping existing configuration.")
			return nil
		}
		initForce = true
	}

	var configPath string
	var err error
	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file: declare your units and their keys")
	fmt.Println("  2. Embed the coordinator in your host, or inspect data with:")
	fmt.Println("       statekeep serve")
	fmt.Printf("       statekeep list --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  A random JWT secret has been generated for development use.")
	fmt.Println("  For production, generate a secure secret and use an environment variable:")
	fmt.Println("    # Generates a 64-character hex string (32 bytes of entropy)")
	fmt.Printf("    export %s=$(openssl rand -hex 32)\n", api.EnvAPISecret)

	return nil
}
