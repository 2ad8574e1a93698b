// Package index provides the vector index: a persistent store of
// (embedding, chunk metadata) entries supporting nearest-neighbor search.
//
// Two interchangeable backends implement the same contract. Memory is an
// in-process linear-scan store adequate for small corpora and offline
// use; Postgres is the production backend over pgvector. The ingestion
// pipeline is the only writer; the search engine is a read-only consumer.
package index

import (
	"context"
	"errors"
	"math"

	"github.com/civicaid/regsearch/internal/regdoc"
)

var (
	// ErrWrite marks an upsert failure after the store-level cause.
	ErrWrite = errors.New("index write failed")

	// ErrQuery marks a similarity-search failure (malformed query,
	// store-side error).
	ErrQuery = errors.New("index query failed")

	// ErrUnavailable marks a connectivity failure: the backing store
	// could not be reached at all. Distinguishable from ErrQuery so
	// callers can tell network trouble from bad requests.
	ErrUnavailable = errors.New("index unavailable")

	// ErrNotReady is returned by the in-memory backend when queried
	// before initialization.
	ErrNotReady = errors.New("index not initialized")
)

// Index is the vector index contract shared by all backends.
type Index interface {
	// Upsert inserts or overwrites an entry by its deterministic id.
	// Idempotent: re-ingesting the same chunk overwrites.
	Upsert(ctx context.Context, e regdoc.Entry) error

	// Query returns the topK entries maximizing cosine similarity to
	// the given vector, ordered by similarity descending.
	Query(ctx context.Context, vector []float32, topK int) ([]regdoc.Match, error)

	// Count returns the number of persisted entries.
	Count(ctx context.Context) (int, error)
}

// Cosine computes the cosine similarity of two vectors: dot product
// divided by the product of magnitudes. Returns 0 when either vector has
// zero magnitude or the dimensions disagree, guarding against division
// by zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		magA += av * av
		magB += bv * bv
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// validateEntry rejects entries that would corrupt the index.
func validateEntry(e regdoc.Entry) error {
	if e.ID == "" {
		return errors.New("entry id is empty")
	}
	if len(e.Vector) == 0 {
		return errors.New("entry vector is empty")
	}
	return regdoc.NewMetadata(e.Chunk).Validate()
}
