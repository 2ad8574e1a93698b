package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/civicaid/regsearch/internal/regdoc"
)

// defaultOpTimeout bounds every store operation so a hung database call
// cannot stall the pipeline or a search indefinitely.
const defaultOpTimeout = 10 * time.Second

// Postgres is the production vector index over PostgreSQL + pgvector.
// Entries live in the regulation_chunks table (see db/migrations);
// similarity search uses the pgvector cosine distance operator.
//
// Safe for concurrent use; connection pooling is handled by pgxpool.
type Postgres struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	timeout time.Duration
}

// NewPostgres creates a pgvector-backed index on an existing pool. The
// pool must have pgvector types registered (see app.Setup) and the
// schema migrated.
func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, logger: logger, timeout: defaultOpTimeout}
}

// Upsert inserts or overwrites an entry by its deterministic id.
func (p *Postgres) Upsert(ctx context.Context, e regdoc.Entry) error {
	if err := validateEntry(e); err != nil {
		return fmt.Errorf("%w: entry %q: %w", ErrWrite, e.ID, err)
	}

	metadataJSON, err := json.Marshal(regdoc.NewMetadata(e.Chunk))
	if err != nil {
		return fmt.Errorf("%w: marshaling metadata for %q: %w", ErrWrite, e.ID, err)
	}

	opCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	vec := pgvector.NewVector(e.Vector)
	_, err = p.pool.Exec(opCtx, `
		INSERT INTO regulation_chunks (id, content, embedding, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content,
		    embedding = EXCLUDED.embedding,
		    metadata = EXCLUDED.metadata`,
		e.ID, e.Chunk.Content, vec, metadataJSON)
	if err != nil {
		return fmt.Errorf("upserting %q: %w", e.ID, classify(ErrWrite, err))
	}

	p.logger.Debug("upserted entry", "id", e.ID, "content_length", len(e.Chunk.Content))
	return nil
}

// Query returns the topK nearest entries by cosine similarity,
// descending. Rows whose metadata is missing required fields are
// quarantined: logged and skipped, never surfaced untyped.
func (p *Postgres) Query(ctx context.Context, vector []float32, topK int) ([]regdoc.Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", ErrQuery, topK)
	}

	opCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	vec := pgvector.NewVector(vector)
	rows, err := p.pool.Query(opCtx, `
		SELECT id, metadata, 1 - (embedding <=> $1) AS similarity
		FROM regulation_chunks
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vec, topK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", classify(ErrQuery, err))
	}
	defer rows.Close()

	matches := make([]regdoc.Match, 0, topK)
	for rows.Next() {
		var (
			id         string
			rawMeta    []byte
			similarity float64
		)
		if err := rows.Scan(&id, &rawMeta, &similarity); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", classify(ErrQuery, err))
		}

		meta, err := regdoc.DecodeMetadata(rawMeta)
		if err != nil {
			p.logger.Warn("quarantining entry with invalid metadata", "id", id, "error", err)
			continue
		}

		matches = append(matches, regdoc.Match{
			Entry:      regdoc.Entry{ID: id, Chunk: meta.Chunk()},
			Similarity: similarity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading result rows: %w", classify(ErrQuery, err))
	}

	return matches, nil
}

// Count returns the number of persisted entries.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	opCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var count int
	if err := p.pool.QueryRow(opCtx, `SELECT COUNT(*) FROM regulation_chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting entries: %w", classify(ErrQuery, err))
	}
	return count, nil
}

// classify wraps err with the given sentinel, or with ErrUnavailable
// when the failure is connectivity rather than the operation itself.
func classify(sentinel, err error) error {
	if isConnectivity(err) {
		sentinel = ErrUnavailable
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// isConnectivity reports whether err indicates the store was unreachable
// (network failure, timeout, failed connect) as opposed to a rejected
// operation.
func isConnectivity(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
