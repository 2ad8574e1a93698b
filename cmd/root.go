// Package cmd defines the regsearch command-line interface.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/civicaid/regsearch/internal/config"
	"github.com/civicaid/regsearch/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "regsearch",
	Short: "Regulation retrieval for benefits eligibility",
	Long: `regsearch ingests a hierarchical corpus of benefits regulations
(federal statutes, state manuals, county guidance), embeds it into
PostgreSQL with pgvector, and serves semantic retrieval that prefers
higher legal authority when matches are equally relevant.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads and validates configuration, then builds the
// application logger from it.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	slog.SetDefault(logger)

	return cfg, logger, nil
}
