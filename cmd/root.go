// Package cmd defines and implements the CLI commands for the pdfpull
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdfpull/pdfpull/internal/config"
	"github.com/pdfpull/pdfpull/internal/logging"
	"github.com/pdfpull/pdfpull/internal/metrics"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdfpull",
		Short: "Bulk PDF retrieval from rate-limited servers",
		Long: `pdfpull downloads large batches of PDF documents from servers that
rate-limit, block, or substitute verification pages for automated
clients. It paces requests per host, backs off globally when the server
starts refusing, validates every payload, and can resume an interrupted
run without re-downloading anything.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newCookiesCmd())
	cmd.AddCommand(newCleanCmd())
	return cmd
}

// bootstrap loads configuration and builds the logger shared by every
// subcommand.
func bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()
	return cfg, logger, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
