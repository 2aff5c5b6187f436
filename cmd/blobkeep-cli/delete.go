package main

import (
	"github.com/spf13/cobra"

	"github.com/sagarc03/blobkeep/clientcli"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <key> [key...]",
	Aliases: []string{"rm"},
	Short:   "Delete blobs from the server",
	Long: `Delete one or more blobs from the server.

Every key is attempted; the command fails if any of them could not be deleted.

Examples:
  blobkeep-cli delete report.pdf
  blobkeep-cli delete a.txt b.txt c.txt
  blobkeep-cli delete -q tmp.bin`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	results, err := client.Delete(cmd.Context(), clientcli.DeleteOptions{Keys: args})
	if err != nil {
		return handleError(cmd.ErrOrStderr(), err)
	}

	if err := getFormatter().FormatDelete(cmd.OutOrStdout(), results); err != nil {
		return err
	}

	if clientcli.HasDeleteErrors(results) {
		return &exitError{code: 1}
	}

	return nil
}
