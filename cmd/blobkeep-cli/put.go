package main

import (
	"github.com/spf13/cobra"

	"github.com/sagarc03/blobkeep/clientcli"
)

var (
	putKey       string
	putRecursive bool
)

var putCmd = &cobra.Command{
	Use:   "put <local-path>",
	Short: "Store a file on the server",
	Long: `Store a file on the server.

The key defaults to the file's base name. With -r a directory is walked and
nested paths are flattened with '_' (photos/2024/a.jpg -> 2024_a.jpg); --key
then acts as a prefix for every generated key.

Examples:
  blobkeep-cli put ./report.pdf
  blobkeep-cli put ./report.pdf --key report-2024.pdf
  blobkeep-cli put -r ./photos --key photos-`,
	Args: cobra.ExactArgs(1),
	RunE: runPut,
}

func init() {
	putCmd.Flags().StringVarP(&putKey, "key", "k", "", "blob key, or key prefix with -r")
	putCmd.Flags().BoolVarP(&putRecursive, "recursive", "r", false, "store a directory recursively")

	rootCmd.AddCommand(putCmd)
}

func runPut(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	results, err := client.Put(cmd.Context(), clientcli.PutOptions{
		LocalPath: args[0],
		Key:       putKey,
		Recursive: putRecursive,
	})
	if err != nil && len(results) == 0 {
		return handleError(cmd.ErrOrStderr(), err)
	}

	if fmtErr := getFormatter().FormatPut(cmd.OutOrStdout(), results); fmtErr != nil {
		return fmtErr
	}

	if err != nil {
		return handleError(cmd.ErrOrStderr(), err)
	}
	if clientcli.HasPutErrors(results) {
		return &exitError{code: 1}
	}

	return nil
}
