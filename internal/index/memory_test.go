package index

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/civicaid/regsearch/internal/log"
	"github.com/civicaid/regsearch/internal/regdoc"
)

func entry(hierarchy, filename string, idx int, vec []float32) regdoc.Entry {
	return regdoc.Entry{
		ID:     regdoc.EntryID(hierarchy, filename, idx),
		Vector: vec,
		Chunk: regdoc.Chunk{
			Content:    fmt.Sprintf("chunk %d of %s", idx, filename),
			Source:     hierarchy + "/" + filename,
			Hierarchy:  hierarchy,
			Filename:   filename,
			ChunkIndex: idx,
		},
	}
}

func TestMemoryNotReady(t *testing.T) {
	m := NewMemory(log.NewNop())

	if m.Ready() {
		t.Error("fresh store reports ready")
	}
	if _, err := m.Query(context.Background(), []float32{1, 0}, 5); !errors.Is(err, ErrNotReady) {
		t.Errorf("Query() before init error = %v, want ErrNotReady", err)
	}
}

func TestMemoryWarm(t *testing.T) {
	m := NewMemory(log.NewNop())
	entries := []regdoc.Entry{
		entry("federal", "hr1.pdf", 0, []float32{1, 0}),
		entry("california", "medi-cal.pdf", 0, []float32{0, 1}),
	}

	if err := m.Warm(context.Background(), entries); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	if !m.Ready() {
		t.Error("store not ready after Warm")
	}

	n, err := m.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

func TestMemoryWarmRejectsInvalid(t *testing.T) {
	m := NewMemory(log.NewNop())
	bad := entry("federal", "hr1.pdf", 0, []float32{1, 0})
	bad.Chunk.Hierarchy = "" // required metadata missing

	err := m.Warm(context.Background(), []regdoc.Entry{bad})
	if !errors.Is(err, ErrWrite) {
		t.Errorf("Warm() error = %v, want ErrWrite", err)
	}
	if m.Ready() {
		t.Error("store went ready after rejected Warm")
	}
}

func TestMemoryUpsertIdempotent(t *testing.T) {
	m := NewMemory(log.NewNop())
	ctx := context.Background()

	e := entry("federal", "hr1.pdf", 0, []float32{1, 0})
	if err := m.Upsert(ctx, e); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// Same id, new content: must overwrite, not duplicate.
	e.Chunk.Content = "revised text"
	e.Vector = []float32{0, 1}
	if err := m.Upsert(ctx, e); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	n, _ := m.Count(ctx)
	if n != 1 {
		t.Errorf("Count() after double upsert = %d, want 1", n)
	}

	matches, err := m.Query(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if matches[0].Entry.Chunk.Content != "revised text" {
		t.Errorf("content = %q, want overwritten value", matches[0].Entry.Chunk.Content)
	}
}

func TestMemoryQueryOrdering(t *testing.T) {
	m := NewMemory(log.NewNop())
	ctx := context.Background()

	// Vectors at decreasing similarity to the query (1,0).
	for i, vec := range [][]float32{
		{1, 0},       // similarity 1.0
		{1, 1},       // ~0.707
		{0, 1},       // 0
		{-1, 0.0001}, // ~-1
	} {
		if err := m.Upsert(ctx, entry("federal", fmt.Sprintf("doc%d.pdf", i), 0, vec)); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	matches, err := m.Query(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 4 {
		t.Fatalf("Query() returned %d matches, want 4", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Similarity > matches[i-1].Similarity {
			t.Errorf("matches not in descending order at %d: %v > %v",
				i, matches[i].Similarity, matches[i-1].Similarity)
		}
	}
}

func TestMemoryQueryTruncation(t *testing.T) {
	m := NewMemory(log.NewNop())
	ctx := context.Background()

	for i := range 20 {
		e := entry("federal", fmt.Sprintf("doc%d.pdf", i), 0, []float32{1, float32(i) * 0.01})
		if err := m.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	matches, err := m.Query(ctx, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 5 {
		t.Errorf("Query(topK=5) returned %d matches, want exactly 5", len(matches))
	}
}

func TestMemoryQueryRejectsBadTopK(t *testing.T) {
	m := NewMemory(log.NewNop())
	_ = m.Upsert(context.Background(), entry("federal", "hr1.pdf", 0, []float32{1}))

	if _, err := m.Query(context.Background(), []float32{1}, 0); !errors.Is(err, ErrQuery) {
		t.Errorf("Query(topK=0) error = %v, want ErrQuery", err)
	}
}

func TestMemoryConcurrentReads(t *testing.T) {
	m := NewMemory(log.NewNop())
	ctx := context.Background()
	for i := range 50 {
		_ = m.Upsert(ctx, entry("federal", fmt.Sprintf("doc%d.pdf", i), 0, []float32{1, float32(i)}))
	}

	done := make(chan error, 8)
	for range 8 {
		go func() {
			_, err := m.Query(ctx, []float32{1, 0}, 10)
			done <- err
		}()
	}
	for range 8 {
		if err := <-done; err != nil {
			t.Errorf("concurrent Query() error = %v", err)
		}
	}
}
