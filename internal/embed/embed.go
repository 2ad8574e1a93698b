// Package embed wraps a Genkit embedder behind a single-text API with
// the error classification the ingestion pipeline and search engine need.
//
// The same Service instance must serve both ingestion and query-time
// embedding: vectors are only comparable within one model's space, and
// changing the embedder model requires a full re-ingestion of the corpus.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
)

// ErrEmbedding marks any failure of the external embedding capability,
// including malformed (empty) responses. Check with errors.Is.
var ErrEmbedding = errors.New("embedding failed")

// Service generates fixed-dimension embeddings for text segments.
type Service struct {
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates an embedding Service backed by the given Genkit embedder.
func New(embedder ai.Embedder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{embedder: embedder, logger: logger}
}

// Embed converts a text segment into its embedding vector. An empty or
// missing vector from the provider is treated as a failure, never as a
// usable embedding.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			ai.DocumentFromText(text, nil),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: provider returned empty embedding", ErrEmbedding)
	}

	vec := resp.Embeddings[0].Embedding
	s.logger.Debug("embedded text", "input_bytes", len(text), "dimension", len(vec))
	return vec, nil
}

// IsRateLimited reports whether err carries a rate-limit signal from the
// embedding or extraction provider. Rate limits trigger exponential
// backoff retry rather than immediate failure.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(), "rate limit", "quota exceeded", "resource_exhausted", "429")
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
