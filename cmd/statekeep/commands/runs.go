package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/statekeep/internal/cli/output"
	"github.com/marmos91/statekeep/pkg/config"
	"github.com/marmos91/statekeep/pkg/report"
)

var (
	runsLimit  int
	runsOutput string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List exclusive-run reports",
	Long: `List persisted reports of exclusive runs (startup, shutdown, training
stop saves, game reset saves), most recent first.

Examples:
  # Last 20 runs (default)
  statekeep runs

  # Last 5 runs as JSON, with per-artifact outcomes
  statekeep runs --limit 5 --output json`,
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs to show")
	runsCmd.Flags().StringVarP(&runsOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}
	format, err := output.ParseFormat(runsOutput)
	if err != nil {
		return err
	}

	store, err := report.New(&cfg.Reports)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(context.Background(), runsLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, runs)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	table := output.NewTableData("RUN", "KIND", "STARTED", "DURATION", "OK", "FAILED", "QUIESCED")
	for _, r := range runs {
		quiesced := "yes"
		if r.QuiescenceTimedOut {
			quiesced = "timed out"
		}
		table.AddRow(
			r.ID,
			r.Kind,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%.0fms", r.DurationMS),
			fmt.Sprintf("%d", r.Succeeded),
			fmt.Sprintf("%d", r.Failed),
			quiesced,
		)
	}
	return output.PrintTable(os.Stdout, table)
}
