package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagarc03/blobkeep"
	"github.com/sagarc03/blobkeep/config"
)

var removeCmd = &cobra.Command{
	Use:   "remove [flags] <key1> [key2] ...",
	Short: "Remove blobs",
	Long: `Delete blobs and their metadata.

Examples:
  # Remove a single blob
  blobkeep remove report.pdf

  # Remove multiple blobs
  blobkeep remove a.txt b.txt c.txt

  # Remove every blob whose key starts with a prefix
  blobkeep remove --prefix assets-

  # Remove quietly (suppress per-key output)
  blobkeep remove -q file.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

var (
	removePrefix bool
	removeQuiet  bool
)

func init() {
	removeCmd.Flags().BoolVarP(&removePrefix, "prefix", "p", false, "treat arguments as key prefixes and remove all matching blobs")
	removeCmd.Flags().BoolVarP(&removeQuiet, "quiet", "q", false, "suppress per-key output")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
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

	keys := args
	if removePrefix {
		keys = nil
		for key, listErr := range a.service.List(ctx) {
			if listErr != nil {
				return fmt.Errorf("list: %w", listErr)
			}
			if hasAnyPrefix(key, args) {
				keys = append(keys, key)
			}
		}
	}

	removed := 0
	notFound := 0

	for _, key := range keys {
		deleteErr := a.service.Delete(ctx, key)
		if errors.Is(deleteErr, blobkeep.ErrNotFound) {
			notFound++
			if !removeQuiet {
				slog.Warn("not found", "key", key)
			}
			continue
		}
		if deleteErr != nil {
			return fmt.Errorf("remove %s: %w", key, deleteErr)
		}
		removed++
		if !removeQuiet {
			slog.Info("removed", "key", key)
		}
	}

	slog.Info("remove complete", "removed", removed, "not_found", notFound)
	return nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
