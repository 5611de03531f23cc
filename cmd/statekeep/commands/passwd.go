package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/statekeep/internal/cli/prompt"
	"github.com/marmos91/statekeep/pkg/api/auth"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Generate an operator password hash",
	Long: `Prompt for an operator password and print its bcrypt hash.

Put the hash under api.auth.password_hash in the configuration file to
enable the ops API's mutating endpoints (manual flush, quarantine deletion).

Example:
  statekeep passwd`,
	RunE: runPasswd,
}

func runPasswd(cmd *cobra.Command, args []string) error {
	password, err := prompt.PasswordWithConfirmation("Operator password", "Confirm password", 8)
	if err != nil {
		if prompt.IsAborted(err) {
			return fmt.Errorf("aborted")
		}
		return err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	fmt.Println("\nAdd to your configuration file:")
	fmt.Println("  api:")
	fmt.Println("    auth:")
	fmt.Printf("      password_hash: %q\n", hash)
	return nil
}
