package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/statekeep/internal/cli/output"
	"github.com/marmos91/statekeep/pkg/config"
)

var listOutput string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogued artifacts",
	Long: `List all artifacts recorded in the catalog, with their codec, size,
payload checksum and last durable write time.

Examples:
  # Table output (default)
  statekeep list

  # JSON for scripting
  statekeep list --output json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}
	format, err := output.ParseFormat(listOutput)
	if err != nil {
		return err
	}
	ctx := context.Background()

	cat, err := OpenCatalog(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() { _ = cat.Close() }()

	entries, err := cat.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list artifacts: %w", err)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, entries)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, entries)
	}

	if len(entries) == 0 {
		fmt.Println("No artifacts catalogued.")
		return nil
	}

	table := output.NewTableData("UNIT", "KEY", "CODEC", "SIZE", "CHECKSUM", "SAVED AT")
	for _, e := range entries {
		table.AddRow(
			e.Unit,
			e.Key,
			e.Kind,
			fmt.Sprintf("%d", e.Size),
			fmt.Sprintf("%08x", e.Checksum),
			e.SavedAt.Format("2006-01-02 15:04:05"),
		)
	}
	return output.PrintTable(os.Stdout, table)
}
