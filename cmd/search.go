package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/civicaid/regsearch/internal/app"
	"github.com/civicaid/regsearch/internal/search"
)

var searchTopK int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run a one-shot retrieval query",
	Long: `Embeds the query, retrieves the closest regulation chunks from the
index, and prints them as JSON ordered by relevance with near-ties
resolved in favor of higher legal authority.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(args[0])
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 0, "number of results (default from config)")
	rootCmd.AddCommand(searchCmd)
}

// searchOutput is the CLI result shape, one object per match.
type searchOutput struct {
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Hierarchy  string  `json:"hierarchy"`
	Similarity float64 `json:"similarity"`
	Filename   string  `json:"filename,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
}

func runSearch(query string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
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

	topK := searchTopK
	if topK == 0 {
		topK = cfg.TopK
	}

	matches, err := a.Engine.Search(ctx, query, search.WithTopK(topK))
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	results := make([]searchOutput, 0, len(matches))
	for _, m := range matches {
		results = append(results, searchOutput{
			Content:    m.Entry.Chunk.Content,
			Source:     m.Entry.Chunk.Source,
			Hierarchy:  m.Entry.Chunk.Hierarchy,
			Similarity: m.Similarity,
			Filename:   m.Entry.Chunk.Filename,
			ChunkIndex: m.Entry.Chunk.ChunkIndex,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
