package main

import (
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server is alive and ready",
	Long: `Check that the server is alive and ready.

Exits non-zero when the server is unreachable or not ready.`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.Health(cmd.Context())
	if err != nil {
		return handleError(cmd.ErrOrStderr(), err)
	}

	if err := getFormatter().FormatHealth(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	if !result.Ready {
		return &exitError{code: 1}
	}
	return nil
}
