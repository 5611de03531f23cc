package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/statekeep/internal/cli/output"
	"github.com/marmos91/statekeep/pkg/artifact"
	"github.com/marmos91/statekeep/pkg/catalog"
	"github.com/marmos91/statekeep/pkg/config"
)

var verifyQuarantine bool

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify stored artifacts",
	Long: `Walk the artifact storage tree, decode every stored envelope and check
its integrity: magic, version, body length, checksum, and codec round-trip.
When the catalog is reachable, each artifact's payload checksum is also
compared against the catalogued value.

Corrupt files are reported, never deleted. With --quarantine they are moved
to the quarantine directory and recorded in the catalog, the same treatment
a corrupt artifact receives on a live read.

Examples:
  # Verify everything under storage.path
  statekeep verify

  # Verify and quarantine anything corrupt
  statekeep verify --quarantine`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyQuarantine, "quarantine", false, "Move corrupt files to the quarantine directory")
}

type verifyRow struct {
	id     artifact.ID
	status string
	size   int64
	detail string
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}
	ctx := context.Background()

	var cat catalog.Store
	if cat, err = OpenCatalog(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: catalog unavailable, checksum cross-check skipped: %v\n", err)
		cat = nil
	} else {
		defer func() { _ = cat.Close() }()
	}

	rows, corrupt, err := verifyTree(ctx, cfg, cat)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Printf("No artifacts found under %s\n", cfg.Storage.Path)
		return nil
	}

	table := output.NewTableData("ARTIFACT", "STATUS", "SIZE", "DETAIL")
	for _, row := range rows {
		table.AddRow(row.id.String(), row.status, fmt.Sprintf("%d", row.size), row.detail)
	}
	if err := output.PrintTable(os.Stdout, table); err != nil {
		return err
	}

	fmt.Printf("\n%d artifacts checked, %d corrupt\n", len(rows), corrupt)
	if corrupt > 0 && !verifyQuarantine {
		fmt.Println("Run with --quarantine to set corrupt files aside.")
	}
	if corrupt > 0 {
		return fmt.Errorf("%d corrupt artifacts", corrupt)
	}
	return nil
}

// verifyTree walks <storage.path>/<unit>/<key>.skp, decoding each file.
func verifyTree(ctx context.Context, cfg *config.Config, cat catalog.Store) ([]verifyRow, int, error) {
	root := cfg.Storage.Path
	quarantineDir := cfg.Storage.Quarantine
	if quarantineDir == "" {
		quarantineDir = filepath.Join(root, "quarantine")
	}

	var rows []verifyRow
	corrupt := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// The quarantine tree holds known-corrupt bytes; skip it.
			if filepath.Clean(path) == filepath.Clean(quarantineDir) {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), artifact.FileExt) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		id, err := artifact.ParseID(strings.TrimSuffix(filepath.ToSlash(rel), artifact.FileExt))
		if err != nil {
			rows = append(rows, verifyRow{status: "skipped", detail: fmt.Sprintf("unrecognized layout: %s", rel)})
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rows = append(rows, checkArtifact(ctx, cat, id, path, quarantineDir, raw))
		if rows[len(rows)-1].status == "corrupt" {
			corrupt++
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("walking %s: %w", root, err)
	}
	return rows, corrupt, nil
}

func checkArtifact(ctx context.Context, cat catalog.Store, id artifact.ID, path, quarantineDir string, raw []byte) verifyRow {
	row := verifyRow{id: id, size: int64(len(raw))}

	payload, err := artifact.Decode(id, raw)
	switch {
	case errors.Is(err, artifact.ErrNoData):
		row.status = "empty"
		row.detail = "no prior state"
		return row
	case err != nil:
		row.status = "corrupt"
		row.detail = err.Error()
		if verifyQuarantine {
			row.detail = quarantineFile(ctx, cat, id, path, quarantineDir, raw, err)
		}
		return row
	}

	row.status = "ok"
	if cat != nil {
		entry, err := cat.GetEntry(ctx, id)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			row.detail = "not catalogued"
		case err != nil:
			row.detail = "catalog lookup failed"
		case entry.Checksum != artifact.PayloadSum(payload):
			row.status = "mismatch"
			row.detail = "payload checksum differs from catalog"
		}
	}
	return row
}

// quarantineFile gives a corrupt file the same treatment a live read would:
// preserved copy, catalog record, original truncated to empty.
func quarantineFile(ctx context.Context, cat catalog.Store, id artifact.ID, path, quarantineDir string, raw []byte, decodeErr error) string {
	now := time.Now()
	dir := filepath.Join(quarantineDir, id.Unit)
	dest := filepath.Join(dir, fmt.Sprintf("%s.%d%s", id.Key, now.UnixNano(), artifact.FileExt))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Sprintf("quarantine failed: %v", err)
	}
	if err := os.WriteFile(dest, raw, 0o644); err != nil {
		return fmt.Sprintf("quarantine failed: %v", err)
	}
	if err := os.Truncate(path, 0); err != nil {
		return fmt.Sprintf("quarantined to %s, truncate failed: %v", dest, err)
	}

	if cat != nil {
		err := cat.PutQuarantine(ctx, catalog.QuarantineEntry{
			Unit:          id.Unit,
			Key:           id.Key,
			Path:          dest,
			Reason:        decodeErr.Error(),
			Size:          int64(len(raw)),
			QuarantinedAt: now,
		})
		if err != nil {
			return fmt.Sprintf("quarantined to %s, catalog record failed: %v", dest, err)
		}
	}
	return "quarantined to " + dest
}
