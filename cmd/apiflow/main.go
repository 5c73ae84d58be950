// Package main provides the apiflow CLI entry point.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/meikuraledutech/apiflow/config"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	configPath  string

	cfg    config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "apiflow",
	Short: "Visual API flow editor backend",
	Long: `apiflow stores, edits and validates API flows: directed graphs of
configured nodes (sources, transforms, conditions, notifications) that
describe how data moves between endpoints.

Flows persist to the remote flow server, Postgres or a local SQLite file.
All commands output JSON by default. Use --human for readable output.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("APIFLOW_CONFIG"), "Path to a YAML config file")
	rootCmd.Version = Version
}

// setup loads .env, the config file and the logger before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	loaded, err := config.Load(configPath)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	cfg = loaded
	logger = slog.New(cfg.Log.Handler(os.Stderr))
	slog.SetDefault(logger)
	return nil
}
