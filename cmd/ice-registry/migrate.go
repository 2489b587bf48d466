package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glestaris/ice/pkg/log"
	"github.com/glestaris/ice/pkg/storage"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy every document from one store backend to another",
	Long: `Copy all sessions and instances between store backends, keeping ids
and creation times.

Examples:
  # Move a bolt store to badger
  ice-registry migrate --from bolt --from-dir /var/lib/ice --to badger --to-dir /var/lib/ice-badger

  # Inspect what would be copied
  ice-registry migrate --from-dir /var/lib/ice --to-dir /tmp/ice --dry-run`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().String("from", storage.BackendBolt, "Source backend")
	migrateCmd.Flags().String("from-dir", "/var/lib/ice", "Source data directory")
	migrateCmd.Flags().String("to", storage.BackendBadger, "Destination backend")
	migrateCmd.Flags().String("to-dir", "", "Destination data directory (required)")
	migrateCmd.Flags().Bool("dry-run", false, "Show what would be migrated without making changes")
	_ = migrateCmd.MarkFlagRequired("to-dir")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	fromDir, _ := cmd.Flags().GetString("from-dir")
	to, _ := cmd.Flags().GetString("to")
	toDir, _ := cmd.Flags().GetString("to-dir")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	log.Init(log.Config{Level: log.InfoLevel, Output: os.Stderr})
	logger := log.WithComponent("migrate")

	if filepath.Clean(fromDir) == filepath.Clean(toDir) && from == to {
		return fmt.Errorf("source and destination are the same store")
	}
	if _, err := os.Stat(fromDir); err != nil {
		return fmt.Errorf("source data directory: %w", err)
	}

	src, err := storage.Open(from, fromDir)
	if err != nil {
		return fmt.Errorf("failed to open source store: %w", err)
	}
	defer src.Close()

	if dryRun {
		sessions, err := src.ListSessions()
		if err != nil {
			return err
		}
		instances, err := src.ListInstances()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[DRY RUN] Would copy %d session(s) and %d instance(s) from %s:%s to %s:%s\n",
			len(sessions), len(instances), from, fromDir, to, toDir)
		return nil
	}

	if err := os.MkdirAll(toDir, 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	dst, err := storage.Open(to, toDir)
	if err != nil {
		return fmt.Errorf("failed to open destination store: %w", err)
	}
	defer dst.Close()

	sessions, instances, err := storage.Copy(dst, src)
	if err != nil {
		return fmt.Errorf("migration failed after %d session(s) and %d instance(s): %w", sessions, instances, err)
	}

	logger.Info().
		Int("sessions", sessions).
		Int("instances", instances).
		Str("from", from).
		Str("to", to).
		Msg("Migration completed")
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Copied %d session(s) and %d instance(s)\n", sessions, instances)
	return nil
}
