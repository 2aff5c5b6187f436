package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/blobkeep/config"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Bring the metadata index in line with the storage directory",
	Long: `Scan the storage directory and repair the metadata index:
  - remove temporary files left by interrupted uploads
  - index blob files that have no metadata (e.g. copied in by hand)
  - drop metadata whose blob file is gone

This is useful when:
  - Setting up blobkeep over an existing directory
  - Recovering metadata after database loss
  - Switching metadata backends`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	slog.Info("scanning storage directory", "path", cfg.Storage.Path)

	res, err := a.service.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	slog.Info("reconcile complete", "indexed", res.Indexed, "pruned", res.Pruned, "temp_removed", res.TempRemoved)
	return nil
}
