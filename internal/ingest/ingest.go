// Package ingest implements the batch pipeline that turns a regulation
// corpus on disk into vector index entries: walk the hierarchy
// directories, extract text, chunk, embed, upsert.
//
// The pipeline is deliberately sequential. Embedding providers rate
// limit aggressively, and a regulation corpus is small enough that
// paced one-at-a-time calls finish in minutes while staying well under
// quota. Failures are contained: a chunk or document that cannot be
// processed after retries is logged and skipped, never fatal to the run.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/civicaid/regsearch/internal/chunk"
	"github.com/civicaid/regsearch/internal/extract"
	"github.com/civicaid/regsearch/internal/index"
	"github.com/civicaid/regsearch/internal/regdoc"
)

// ErrLocked is returned when another ingestion run holds the corpus lock.
var ErrLocked = errors.New("ingestion already in progress")

// Embedder is the embedding capability the pipeline consumes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config controls pipeline behavior. Zero values fall back to defaults
// via DefaultConfig; tests override individual fields.
type Config struct {
	// ChunkSize and ChunkOverlap parameterize the splitter.
	ChunkSize    int
	ChunkOverlap int

	// MinContent is the minimum extracted document length in bytes.
	// Shorter documents are noise (empty scans, stub pages) and skipped.
	MinContent int

	// MaxFileSize guards against accidentally ingesting huge binaries.
	MaxFileSize int64

	// ChunkDelay paces embedding calls; DocumentDelay separates
	// documents. Zero disables pacing (tests).
	ChunkDelay    time.Duration
	DocumentDelay time.Duration

	// EmbedTimeout bounds a single embedding attempt.
	EmbedTimeout time.Duration

	// Hierarchies are the corpus subdirectories in priority order,
	// highest first.
	Hierarchies []string

	Retry RetryConfig
}

// DefaultConfig returns the production pipeline settings.
func DefaultConfig() Config {
	return Config{
		ChunkSize:     chunk.DefaultSize,
		ChunkOverlap:  chunk.DefaultOverlap,
		MinContent:    100,
		MaxFileSize:   50 << 20, // 50MB
		ChunkDelay:    300 * time.Millisecond,
		DocumentDelay: time.Second,
		EmbedTimeout:  30 * time.Second,
		Hierarchies:   regdoc.DefaultHierarchy,
		Retry:         DefaultRetryConfig(),
	}
}

// Stats summarizes one pipeline run.
type Stats struct {
	Documents        int           // documents fully processed
	DocumentsSkipped int           // unsupported, oversized, too short, or failed
	Chunks           int           // chunks embedded and upserted
	ChunksSkipped    int           // chunks dropped after retry exhaustion
	Elapsed          time.Duration // wall time of the run
}

// Throughput returns processed chunks per second.
func (s Stats) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Chunks) / s.Elapsed.Seconds()
}

// Pipeline ingests a corpus directory into a vector index.
type Pipeline struct {
	extractor extract.Extractor
	embedder  Embedder
	idx       index.Index
	cfg       Config
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// New creates a pipeline. The extractor, embedder and index are the
// pipeline's collaborators; the same embedder instance must later serve
// query-time embedding.
func New(extractor extract.Extractor, embedder Embedder, idx index.Index, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: extractor,
		embedder:  embedder,
		idx:       idx,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Every(cfg.ChunkDelay), 1),
		logger:    logger.With("component", "ingest"),
	}
}

// Run ingests every supported document under corpusDir. The corpus is
// laid out as one subdirectory per hierarchy level (federal, california,
// sf-local); directories are processed in priority order.
//
// A lock file in corpusDir prevents concurrent runs from interleaving
// writes. Run returns ErrLocked if another run holds it.
func (p *Pipeline) Run(ctx context.Context, corpusDir string) (Stats, error) {
	lock := flock.New(filepath.Join(corpusDir, ".regsearch.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return Stats{}, fmt.Errorf("acquiring corpus lock: %w", err)
	}
	if !locked {
		return Stats{}, ErrLocked
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			p.logger.Warn("failed to release corpus lock", "error", err)
		}
	}()

	start := time.Now()
	var stats Stats

	for _, hierarchy := range p.cfg.Hierarchies {
		dir := filepath.Join(corpusDir, hierarchy)
		if _, err := os.Stat(dir); err != nil {
			p.logger.Warn("hierarchy directory missing, skipping", "hierarchy", hierarchy, "dir", dir)
			continue
		}

		if err := p.ingestDir(ctx, dir, hierarchy, &stats); err != nil {
			stats.Elapsed = time.Since(start)
			return stats, err
		}
	}

	stats.Elapsed = time.Since(start)
	p.logger.Info("ingestion complete",
		"documents", stats.Documents,
		"documents_skipped", stats.DocumentsSkipped,
		"chunks", stats.Chunks,
		"chunks_skipped", stats.ChunksSkipped,
		"elapsed", stats.Elapsed,
		"chunks_per_second", stats.Throughput())
	return stats, nil
}

// ingestDir walks one hierarchy directory. Only context cancellation
// aborts the walk; per-document failures are counted and skipped.
func (p *Pipeline) ingestDir(ctx context.Context, dir, hierarchy string, stats *Stats) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			p.logger.Warn("walk error, skipping", "path", path, "error", err)
			stats.DocumentsSkipped++
			return nil
		}
		if d.IsDir() {
			return nil
		}

		// Cancellation is checked between documents so a long run can
		// be stopped without losing completed upserts.
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("ingestion canceled: %w", err)
		}

		if err := p.ingestFile(ctx, path, hierarchy, stats); err != nil {
			return err
		}

		if p.cfg.DocumentDelay > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("ingestion canceled: %w", ctx.Err())
			case <-time.After(p.cfg.DocumentDelay):
			}
		}
		return nil
	})
}

// ingestFile processes one document end to end. Returns an error only
// on cancellation; all other failures increment skip counters.
func (p *Pipeline) ingestFile(ctx context.Context, path, hierarchy string, stats *Stats) error {
	filename := filepath.Base(path)
	logger := p.logger.With("hierarchy", hierarchy, "file", filename)

	ctx, span := otel.Tracer("regsearch/ingest").Start(ctx, "ingest.document")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.hierarchy", hierarchy),
		attribute.String("document.filename", filename),
	)

	mime := extract.MIMEForPath(path)
	if mime == "" {
		logger.Debug("unsupported file type, skipping")
		stats.DocumentsSkipped++
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Warn("stat failed, skipping", "error", err)
		stats.DocumentsSkipped++
		return nil
	}
	if info.Size() > p.cfg.MaxFileSize {
		logger.Warn("file exceeds size limit, skipping",
			"size_bytes", info.Size(), "limit_bytes", p.cfg.MaxFileSize)
		stats.DocumentsSkipped++
		return nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from walking the configured corpus dir
	if err != nil {
		logger.Warn("read failed, skipping", "error", err)
		stats.DocumentsSkipped++
		return nil
	}

	var text string
	err = withRetry(ctx, logger, p.cfg.Retry, "extract", func(ctx context.Context) error {
		var exErr error
		text, exErr = p.extractor.Extract(ctx, data, mime)
		return exErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ingestion canceled: %w", ctx.Err())
		}
		logger.Warn("extraction failed, skipping document", "error", err)
		stats.DocumentsSkipped++
		return nil
	}

	if len(text) < p.cfg.MinContent {
		logger.Warn("extracted content too short, skipping",
			"length", len(text), "minimum", p.cfg.MinContent)
		stats.DocumentsSkipped++
		return nil
	}

	chunks, err := chunk.Split(text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if err != nil {
		logger.Warn("chunking failed, skipping document", "error", err)
		stats.DocumentsSkipped++
		return nil
	}

	logger.Info("ingesting document", "size_bytes", info.Size(), "chunks", len(chunks))

	for i, content := range chunks {
		if err := p.ingestChunk(ctx, hierarchy, filename, i, content); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("ingestion canceled: %w", ctx.Err())
			}
			logger.Warn("chunk failed after retries, skipping",
				"chunk_index", i, "error", err)
			stats.ChunksSkipped++
			continue
		}
		stats.Chunks++
	}

	stats.Documents++
	return nil
}

// ingestChunk embeds one chunk and upserts it, pacing the embedding
// call. Both external calls retry transient failures with backoff; the
// chunk is only skipped once retries are exhausted.
func (p *Pipeline) ingestChunk(ctx context.Context, hierarchy, filename string, chunkIndex int, content string) error {
	var vector []float32
	err := withRetry(ctx, p.logger, p.cfg.Retry, "embed", func(ctx context.Context) error {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("pacing wait: %w", err)
		}

		embedCtx := ctx
		if p.cfg.EmbedTimeout > 0 {
			var cancel context.CancelFunc
			embedCtx, cancel = context.WithTimeout(ctx, p.cfg.EmbedTimeout)
			defer cancel()
		}

		var embErr error
		vector, embErr = p.embedder.Embed(embedCtx, content)
		return embErr
	})
	if err != nil {
		return err
	}

	entry := regdoc.Entry{
		ID:     regdoc.EntryID(hierarchy, filename, chunkIndex),
		Vector: vector,
		Chunk: regdoc.Chunk{
			Content:    content,
			Source:     hierarchy + "/" + filename,
			Hierarchy:  hierarchy,
			Filename:   filename,
			ChunkIndex: chunkIndex,
		},
	}
	err = withRetry(ctx, p.logger, p.cfg.Retry, "index write", func(ctx context.Context) error {
		return p.idx.Upsert(ctx, entry)
	})
	if err != nil {
		return fmt.Errorf("upserting chunk: %w", err)
	}
	return nil
}
