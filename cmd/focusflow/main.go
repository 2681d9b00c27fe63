package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"focusflow/backend/internal/config"
	"focusflow/backend/internal/logging"
)

var (
	// Global flags
	verbose  bool
	logLevel string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "focusflow",
	Short: "FocusFlow Pomodoro backend",
	Long: `FocusFlow runs Pomodoro work and break phases, a free-running stopwatch
and the HTTP API the dashboard talks to.

Configuration comes from the environment (and an optional .env file).
Initial Pomodoro durations can be read from POMODORO_SETTINGS_FILE.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		level := cfg.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.Development)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd, migrateCmd, runCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
