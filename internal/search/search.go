// Package search implements retrieval and ranking: embed the query,
// fetch nearest chunks from the vector index, and rerank near-ties by
// regulation hierarchy.
//
// The hierarchy rerank encodes a legal reality: when a federal rule and
// a local rule say nearly the same thing about eligibility, the federal
// rule is the one to cite. Similarity still dominates when the gap is
// clear; hierarchy only breaks near-ties.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/civicaid/regsearch/internal/regdoc"
)

// ErrSearch marks any retrieval failure. A search either returns fully
// ranked results or fails; there are no partial result sets.
var ErrSearch = errors.New("search failed")

const (
	// DefaultTopK is the number of results returned when the caller
	// does not specify one.
	DefaultTopK = 15

	// MaxTopK bounds caller-supplied result sizes.
	MaxTopK = 100

	// DefaultCloseness is the similarity gap under which two matches
	// count as a near-tie and hierarchy priority decides their order.
	DefaultCloseness = 0.1
)

// Embedder is the query-embedding capability the engine consumes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Querier is the read side of the vector index.
type Querier interface {
	Query(ctx context.Context, vector []float32, topK int) ([]regdoc.Match, error)
}

// Option configures a single Search call.
type Option func(*options)

type options struct {
	topK int
}

// WithTopK sets how many results the search returns.
func WithTopK(k int) Option {
	return func(o *options) { o.topK = k }
}

// Engine ranks regulation chunks for eligibility queries.
type Engine struct {
	embedder   Embedder
	querier    Querier
	priorities map[string]int
	closeness  float64
	logger     *slog.Logger
}

// New creates a search engine. hierarchyLevels lists hierarchy names in
// priority order, highest first; closeness <= 0 falls back to
// DefaultCloseness.
func New(embedder Embedder, querier Querier, hierarchyLevels []string, closeness float64, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if len(hierarchyLevels) == 0 {
		hierarchyLevels = regdoc.DefaultHierarchy
	}
	if closeness <= 0 {
		closeness = DefaultCloseness
	}
	return &Engine{
		embedder:   embedder,
		querier:    querier,
		priorities: regdoc.Priorities(hierarchyLevels),
		closeness:  closeness,
		logger:     logger.With("component", "search"),
	}
}

// Search embeds the query, retrieves the topK nearest chunks, and
// reranks them with the hierarchy tie-break. Results are ordered best
// first and never exceed topK.
func (e *Engine) Search(ctx context.Context, query string, opts ...Option) ([]regdoc.Match, error) {
	o := options{topK: DefaultTopK}
	for _, opt := range opts {
		opt(&o)
	}
	if o.topK < 1 || o.topK > MaxTopK {
		return nil, fmt.Errorf("%w: topK must be in [1, %d], got %d", ErrSearch, MaxTopK, o.topK)
	}
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrSearch)
	}

	ctx, span := otel.Tracer("regsearch/search").Start(ctx, "search.query")
	defer span.End()
	span.SetAttributes(attribute.Int("search.top_k", o.topK))

	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", ErrSearch, err)
	}

	matches, err := e.querier.Query(ctx, vector, o.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: querying index: %w", ErrSearch, err)
	}

	e.rerank(matches)
	if len(matches) > o.topK {
		matches = matches[:o.topK]
	}

	e.logger.Debug("search complete", "query_length", len(query), "results", len(matches))
	return matches, nil
}

// rerank orders matches by similarity, except that matches within the
// closeness threshold of each other are ordered by hierarchy priority.
// The sort is stable so equal matches keep their index order.
func (e *Engine) rerank(matches []regdoc.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if math.Abs(a.Similarity-b.Similarity) < e.closeness {
			pa, pb := e.priorities[a.Entry.Chunk.Hierarchy], e.priorities[b.Entry.Chunk.Hierarchy]
			if pa != pb {
				return pa > pb
			}
		}
		return a.Similarity > b.Similarity
	})
}
