package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sagarc03/blobkeep/config"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every stored key",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
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

	out := cmd.OutOrStdout()
	for key, err := range a.service.List(ctx) {
		if err != nil {
			return fmt.Errorf("list: %w", err)
		}
		_, _ = fmt.Fprintln(out, key)
	}

	return nil
}
