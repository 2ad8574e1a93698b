package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/civicaid/regsearch/internal/app"
)

var ingestCorpusDir string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest the regulation corpus into the vector index",
	Long: `Walks the corpus directory hierarchy by hierarchy, extracts text
from each document, chunks it, embeds the chunks, and upserts them
into PostgreSQL. Re-running on an unchanged corpus is a no-op: chunk
identifiers are deterministic and upserts overwrite in place.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest()
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCorpusDir, "corpus", "", "corpus root directory (default from config)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	corpusDir := ingestCorpusDir
	if corpusDir == "" {
		corpusDir = cfg.CorpusDir
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	stats, err := a.Pipeline.Run(ctx, corpusDir)
	if err != nil {
		return fmt.Errorf("ingesting corpus: %w", err)
	}

	fmt.Printf("Ingested %d documents (%d skipped), %d chunks (%d skipped) in %s (%.1f chunks/s)\n",
		stats.Documents, stats.DocumentsSkipped,
		stats.Chunks, stats.ChunksSkipped,
		stats.Elapsed.Round(time.Second), stats.Throughput())
	return nil
}
