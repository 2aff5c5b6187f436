package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/sagarc03/blobkeep/clientcli"
)

var (
	getOutput string
	getStdout bool
)

var getCmd = &cobra.Command{
	Use:   "get <key> [local-path]",
	Short: "Fetch a blob from the server",
	Long: `Fetch a blob from the server.

Without a local path the blob is written to <key> in the working directory.

Examples:
  blobkeep-cli get report.pdf
  blobkeep-cli get report.pdf ./downloads/report.pdf
  blobkeep-cli get --stdout config.json | jq .`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGet,
}

func init() {
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "", "output file path")
	getCmd.Flags().BoolVar(&getStdout, "stdout", false, "write to stdout")

	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	localPath := ""
	if len(args) > 1 {
		localPath = args[1]
	}
	if getOutput != "" {
		localPath = getOutput
	}
	if getStdout {
		localPath = "-"
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	result, reader, err := client.Get(cmd.Context(), clientcli.GetOptions{
		Key:       key,
		LocalPath: localPath,
	})
	if err != nil {
		return handleError(cmd.ErrOrStderr(), err)
	}

	if reader != nil {
		defer func() { _ = reader.Close() }()

		n, copyErr := io.Copy(cmd.OutOrStdout(), reader)
		if copyErr != nil {
			return copyErr
		}
		result.Size = n

		// Keep stdout clean for the content, metadata goes to stderr
		if jsonOutput {
			return getFormatter().FormatGet(cmd.ErrOrStderr(), result)
		}
		return nil
	}

	return getFormatter().FormatGet(cmd.OutOrStdout(), result)
}
