// Package cli implements the flowpad command line.
package cli

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/flowpad/flowpad/client"
	"github.com/flowpad/flowpad/config"
	"github.com/flowpad/flowpad/logger"
)

var version = "dev"

var (
	apiURLFlag   string
	logLevelFlag string

	// Resolved by the root command before any subcommand runs.
	cfg         *config.Config
	projectRoot string
	log         zerolog.Logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "flowpad",
	Short: "Edit and sync flowcharts from the terminal",
	Long: `flowpad edits flowcharts stored behind a REST API.

Changes made in the editor are saved automatically every few seconds, on
ctrl+s, and once more on exit. flowpad can also serve the API itself from a
local file, PostgreSQL or Redis, and expose flowcharts to AI agents over MCP.`,
	SilenceUsage:      true,
	PersistentPreRunE: resolveConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", "", "Flowchart API base URL (overrides config and FLOWPAD_API_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: trace, debug, info, warn or error")
	rootCmd.Version = version

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(edgesCmd)
	rootCmd.AddCommand(reachCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(serveCmd)
}

// ExecuteContext runs the root command. Cancelling ctx stops long-running
// commands such as serve, edit and push --watch.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func resolveConfig(cmd *cobra.Command, args []string) error {
	resolved, root, err := config.Resolve()
	if err != nil {
		return err
	}
	if apiURLFlag != "" {
		resolved.API.BaseURL = apiURLFlag
	}
	if logLevelFlag != "" {
		resolved.Log.Level = logLevelFlag
	}

	l, err := logger.New(resolved.Log, os.Stderr)
	if err != nil {
		return err
	}

	cfg = resolved
	projectRoot = root
	log = l
	return nil
}

func newClient() *client.Client {
	return client.NewFromConfig(cfg)
}
