package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/copyleftdev/diffevo/internal/config"
	"github.com/copyleftdev/diffevo/internal/logging"
)

var (
	logLevel  string
	logFormat string

	logger    *logging.Logger
	engineLog *zap.Logger
	defaults  *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "dectl",
	Short: "Differential Evolution benchmark runner",
	Long: `dectl runs the classic and diversity-guided Differential Evolution
engines on test problems with known optima, writing one CSV iteration log per
attempt and optionally persisting runs to SQLite.

Engine defaults come from the DE_* environment variables and can be overridden
per command with flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		defaults = cfg

		logger, err = logging.NewLogger(&logging.Config{
			Level:  logLevel,
			Format: logFormat,
			Output: "stderr",
		})
		if err != nil {
			return err
		}
		engineLog = logging.NewZapLogger(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format (console, json)")
}
