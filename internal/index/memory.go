package index

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/civicaid/regsearch/internal/regdoc"
)

// Memory is the in-process linear-scan backend. Every query computes
// cosine similarity against all entries, so it is O(n) per query and
// adequate only for small corpora.
//
// Memory has an explicit lifecycle: construct once per process, populate
// via Warm (bulk) or Upsert, and check Ready before serving queries.
// Querying an unpopulated store returns ErrNotReady rather than silently
// returning nothing.
//
// Safe for concurrent use: the entry map is guarded by a reader-writer
// lock so ingestion writes never race with query-time iteration.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]regdoc.Entry
	ready   bool
	logger  *slog.Logger
}

// NewMemory creates an empty in-memory index.
func NewMemory(logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		entries: make(map[string]regdoc.Entry),
		logger:  logger,
	}
}

// Warm bulk-loads entries and marks the store ready. Invalid entries are
// rejected as a whole so a partially-validated corpus never goes live.
func (m *Memory) Warm(_ context.Context, entries []regdoc.Entry) error {
	for _, e := range entries {
		if err := validateEntry(e); err != nil {
			return fmt.Errorf("%w: entry %q: %w", ErrWrite, e.ID, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.entries[e.ID] = e
	}
	m.ready = true
	m.logger.Debug("memory index warmed", "entries", len(entries))
	return nil
}

// Ready reports whether the store has been initialized.
func (m *Memory) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// Upsert inserts or overwrites by id. The first successful write marks
// the store ready.
func (m *Memory) Upsert(_ context.Context, e regdoc.Entry) error {
	if err := validateEntry(e); err != nil {
		return fmt.Errorf("%w: entry %q: %w", ErrWrite, e.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	m.ready = true
	return nil
}

// Query scans all entries, scoring each by cosine similarity, and
// returns the topK highest-scoring matches in descending order.
func (m *Memory) Query(_ context.Context, vector []float32, topK int) ([]regdoc.Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", ErrQuery, topK)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.ready {
		return nil, ErrNotReady
	}

	matches := make([]regdoc.Match, 0, len(m.entries))
	for _, e := range m.entries {
		matches = append(matches, regdoc.Match{
			Entry:      e,
			Similarity: Cosine(vector, e.Vector),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Count returns the number of stored entries.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// IDs returns the sorted ids of all stored entries. Used by tests and
// re-ingestion audits to verify idempotency.
func (m *Memory) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
