package main

import (
	"github.com/spf13/cobra"

	"github.com/sagarc03/blobkeep/clientcli"
)

var listLong bool

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List keys stored on the server",
	Long: `List keys stored on the server.

With -l every key is also stat'ed to show its size and modification time.

Examples:
  blobkeep-cli list
  blobkeep-cli list -l
  blobkeep-cli list --json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listLong, "long", "l", false, "show size and modification time")

	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.List(cmd.Context(), clientcli.ListOptions{Long: listLong})
	if err != nil {
		return handleError(cmd.ErrOrStderr(), err)
	}

	return getFormatter().FormatList(cmd.OutOrStdout(), result)
}
