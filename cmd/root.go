package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/minhvu/chatrake/internal/config"
	"github.com/minhvu/chatrake/internal/logging"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

var (
	flagLogLevel  string
	flagLogFormat string
)

var rootCmd = &cobra.Command{
	Use:   "chatrake",
	Short: "Capture, stitch and clean a chat history out of a lazily-loaded conversation view",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load and merge config files.
		global, err := config.LoadGlobal()
		if err != nil {
			return fmt.Errorf("loading global config: %w", err)
		}
		project, err := config.LoadProject()
		if err != nil {
			return fmt.Errorf("loading project config: %w", err)
		}
		cfg = config.Merge(global, project)

		// Flags override config files.
		if flagLogLevel != "" {
			cfg.LogLevel = flagLogLevel
		}
		if flagLogFormat != "" {
			cfg.LogFormat = flagLogFormat
		}
		return nil
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

// NewLogger builds the logger the subcommands share.
func NewLogger() zerolog.Logger {
	return logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: console or json")
}
