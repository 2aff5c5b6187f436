package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sagarc03/blobkeep/clientcli"
)

var (
	version = "dev"

	cfgFile    string
	profile    string
	endpoint   string
	jsonOutput bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:     "blobkeep-cli",
	Version: version,
	Short:   "Client for a blobkeep server",
	Long: `blobkeep-cli talks to a blobkeep server over its REST API.

The endpoint is resolved from, in increasing priority:
  - the selected profile in the config file (~/.blobkeep/config.yaml)
  - BLOBKEEP_ENDPOINT
  - the --endpoint flag`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.blobkeep/config.yaml, env: BLOBKEEP_CLI_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "profile name (env: BLOBKEEP_PROFILE)")
	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "", "server URL (default: http://localhost:8000, env: BLOBKEEP_ENDPOINT)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var exitErr *exitError
		if !errors.As(err, &exitErr) {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// exitError is returned when results were already printed and only the
// exit code is left to report.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// getConfigPath returns the config file to read profiles from.
func getConfigPath() string {
	return cmp.Or(cfgFile, os.Getenv(clientcli.EnvConfig), clientcli.DefaultConfigPath())
}

// buildConfig picks the endpoint from the flag, then BLOBKEEP_ENDPOINT,
// then the selected profile.
func buildConfig() (*clientcli.Config, error) {
	name := cmp.Or(profile, os.Getenv(clientcli.EnvProfile))
	explicit := cfgFile != "" || os.Getenv(clientcli.EnvConfig) != "" || name != ""

	var fromProfile string
	if path := getConfigPath(); path != "" {
		profiles, err := clientcli.LoadProfiles(path)
		switch {
		case err == nil:
			p, resolveErr := profiles.Resolve(name)
			if resolveErr != nil && (name != "" || !errors.Is(resolveErr, clientcli.ErrNoProfiles)) {
				return nil, resolveErr
			}
			fromProfile = p.Endpoint
		case explicit:
			// Only error if the user asked for a file or profile
			return nil, err
		}
	}

	return &clientcli.Config{
		Endpoint: cmp.Or(endpoint, os.Getenv(clientcli.EnvEndpoint), fromProfile),
	}, nil
}

// getFormatter returns the appropriate formatter based on flags.
func getFormatter() clientcli.Formatter {
	return clientcli.NewFormatter(jsonOutput, quiet)
}

// getClient creates and returns a configured client.
func getClient() (*clientcli.Client, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}

	return clientcli.New(cfg)
}

// handleError prints err with the active formatter and hands it back to cobra
// as an exitError so it is not printed twice.
func handleError(w io.Writer, err error) error {
	_ = getFormatter().FormatError(w, err)
	return &exitError{code: 1}
}
