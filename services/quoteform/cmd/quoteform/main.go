package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/southernunderground/quoteform/libs/shared/config"
	"github.com/southernunderground/quoteform/libs/shared/logging"
)

var (
	cfg    *config.AppConfig
	logger *zap.Logger

	// errInvalid is returned by commands that already reported their failure.
	errInvalid = errors.New("invalid")
)

var rootCmd = &cobra.Command{
	Use:   "quoteform",
	Short: "Quote request form service",
	Long: `quoteform serves quote request form sessions over HTTP, validates them and
hands accepted requests to the configured sender (simulated, webhook or queue).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		var err error
		logger, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logger.With(zap.String("service", cfg.ServiceName))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, workerCmd, validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errInvalid) {
			fmt.Fprintln(os.Stderr, "quoteform:", err)
		}
		os.Exit(1)
	}
}
