package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sagarc03/blobkeep/clientcli"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Manage server profiles",
	Long: `Manage server profiles in the configuration file.

Profiles save the endpoint of several blobkeep servers so you can switch
between them with --profile or BLOBKEEP_PROFILE.

Configuration is stored in ~/.blobkeep/config.yaml`,
}

var configureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configured profiles",
	Long: `List all profiles configured in the config file.

The default profile is marked with an asterisk (*).`,
	Args: cobra.NoArgs,
	RunE: runConfigureList,
}

var configureAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a profile",
	Long: `Add or update a profile.

Without --endpoint you are prompted for the endpoint URL and whether the
profile should become the default. The endpoint is checked before saving.

Examples:
  blobkeep-cli configure add local
  blobkeep-cli configure add prod --endpoint https://blobs.example.com --default`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigureAdd,
}

var configureRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a profile",
	Args:    cobra.ExactArgs(1),
	RunE:    runConfigureRemove,
}

var configureSetDefaultCmd = &cobra.Command{
	Use:   "set-default <name>",
	Short: "Set the default profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigureSetDefault,
}

var configureShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show profile details",
	Long: `Show details for a profile.

If no name is provided, shows the default profile.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigureShow,
}

var (
	configureDefault bool
	configureYes     bool
)

func init() {
	configureCmd.AddCommand(configureListCmd)
	configureCmd.AddCommand(configureAddCmd)
	configureCmd.AddCommand(configureRemoveCmd)
	configureCmd.AddCommand(configureSetDefaultCmd)
	configureCmd.AddCommand(configureShowCmd)

	configureAddCmd.Flags().BoolVar(&configureDefault, "default", false, "make this the default profile")
	configureRemoveCmd.Flags().BoolVarP(&configureYes, "yes", "y", false, "do not ask for confirmation")

	rootCmd.AddCommand(configureCmd)
}

// loadOrEmpty loads the config file, returning an empty one when it does not exist.
func loadOrEmpty(path string) (*clientcli.Profiles, error) {
	cfg, err := clientcli.LoadProfiles(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &clientcli.Profiles{}, nil
		}
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runConfigureList(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadOrEmpty(getConfigPath())
	if err != nil {
		return err
	}

	if cfg.Len() == 0 {
		_, _ = fmt.Fprintln(out, "No profiles configured.")
		_, _ = fmt.Fprintln(out, "Run 'blobkeep-cli configure add <name>' to create one.")
		return nil
	}

	return getFormatter().FormatProfileList(out, cfg.List(), cfg.DefaultName())
}

func runConfigureAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	out := cmd.OutOrStdout()
	configPath := getConfigPath()
	interactive := endpoint == ""

	cfg, err := loadOrEmpty(configPath)
	if err != nil {
		return err
	}

	_, exists := cfg.Endpoints[name]
	if exists && interactive {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Profile '%s' already exists. Update it", name),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			_, _ = fmt.Fprintln(out, "Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	}

	endpointURL := endpoint
	if interactive {
		endpointPrompt := promptui.Prompt{
			Label:   "Endpoint URL",
			Default: clientcli.DefaultEndpoint,
			Validate: func(input string) error {
				return (&clientcli.Config{Endpoint: input}).Validate()
			},
		}
		endpointURL, err = endpointPrompt.Run()
		if err != nil {
			return handlePromptError(out, err)
		}
	} else if err := (&clientcli.Config{Endpoint: endpointURL}).Validate(); err != nil {
		return err
	}
	endpointURL = strings.TrimSuffix(endpointURL, "/")

	// First profile is always default
	setAsDefault := configureDefault || cfg.DefaultName() == "" || (exists && cfg.DefaultName() == name)
	if interactive && !setAsDefault {
		defaultPrompt := promptui.Prompt{
			Label:     "Set as default profile",
			IsConfirm: true,
		}
		if _, promptErr := defaultPrompt.Run(); promptErr == nil {
			setAsDefault = true
		}
	}

	_, _ = fmt.Fprint(out, "Testing connection... ")
	if connErr := testServerConnection(cmd.Context(), endpointURL); connErr != nil {
		_, _ = fmt.Fprintln(out, "FAILED")
		_, _ = fmt.Fprintf(out, "Warning: Could not connect to server: %v\n", connErr)

		if interactive {
			continuePrompt := promptui.Prompt{
				Label:     "Save profile anyway",
				IsConfirm: true,
			}
			if _, promptErr := continuePrompt.Run(); promptErr != nil {
				_, _ = fmt.Fprintln(out, "Cancelled.")
				return nil //nolint:nilerr // User cancelled, not an error
			}
		}
	} else {
		_, _ = fmt.Fprintln(out, "OK")
	}

	cfg.Set(name, endpointURL)

	if setAsDefault {
		if err := cfg.SetDefault(name); err != nil {
			return err
		}
	}

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	if exists {
		_, _ = fmt.Fprintf(out, "Profile '%s' updated.\n", name)
	} else {
		_, _ = fmt.Fprintf(out, "Profile '%s' added.\n", name)
	}
	if setAsDefault {
		_, _ = fmt.Fprintln(out, "Set as default profile.")
	}

	return nil
}

func runConfigureRemove(cmd *cobra.Command, args []string) error {
	name := args[0]
	out := cmd.OutOrStdout()
	configPath := getConfigPath()

	cfg, err := clientcli.LoadProfiles(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err = cfg.Resolve(name); err != nil {
		return err
	}

	if !configureYes {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Remove profile '%s'", name),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			_, _ = fmt.Fprintln(out, "Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	}

	if err := cfg.Remove(name); err != nil {
		return fmt.Errorf("remove profile: %w", err)
	}

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Profile '%s' removed.\n", name)
	return nil
}

func runConfigureSetDefault(cmd *cobra.Command, args []string) error {
	name := args[0]
	configPath := getConfigPath()

	cfg, err := clientcli.LoadProfiles(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.SetDefault(name); err != nil {
		return err
	}

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Default profile set to '%s'.\n", name)
	return nil
}

func runConfigureShow(cmd *cobra.Command, args []string) error {
	cfg, err := clientcli.LoadProfiles(getConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	p, err := cfg.Resolve(name)
	if err != nil {
		return err
	}

	return getFormatter().FormatProfileShow(cmd.OutOrStdout(), p, p.Name == cfg.DefaultName())
}

// testServerConnection calls the liveness endpoint of the server.
func testServerConnection(ctx context.Context, endpointURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := clientcli.New(&clientcli.Config{Endpoint: endpointURL}, clientcli.WithTimeout(5*time.Second))
	if err != nil {
		return err
	}

	_, err = client.Health(ctx)
	return err
}

// handlePromptError handles promptui errors.
func handlePromptError(w io.Writer, err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) {
		_, _ = fmt.Fprintln(w, "Cancelled.")
		return nil
	}
	return err
}
