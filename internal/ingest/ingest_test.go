package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/civicaid/regsearch/internal/embed"
	"github.com/civicaid/regsearch/internal/extract"
	"github.com/civicaid/regsearch/internal/index"
	"github.com/civicaid/regsearch/internal/ingest"
	"github.com/civicaid/regsearch/internal/log"
	"github.com/civicaid/regsearch/internal/regdoc"
	"github.com/civicaid/regsearch/internal/testutil"
)

// flakyIndex fails the first failures Upsert calls with a transient
// provider error, then delegates to the wrapped index.
type flakyIndex struct {
	index.Index
	failures int
	calls    int
}

func (f *flakyIndex) Upsert(ctx context.Context, e regdoc.Entry) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("googleapi: Error 429: rate limit exceeded")
	}
	return f.Index.Upsert(ctx, e)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// regulationText builds a document long enough to split into multiple
// chunks, with sentence boundaries for the splitter to find.
func regulationText(sentences int) string {
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		b.WriteString("Section 435.119 provides coverage for adults under age 65 with household income at or below 133 percent of the federal poverty level. ")
	}
	return b.String()
}

// writeCorpus lays out a corpus directory with the standard hierarchy.
func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// testConfig disables pacing so tests run fast.
func testConfig() ingest.Config {
	cfg := ingest.DefaultConfig()
	cfg.ChunkDelay = 0
	cfg.DocumentDelay = 0
	cfg.Retry = ingest.RetryConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
	return cfg
}

func newPipeline(t *testing.T, mock *testutil.MockEmbedder, idx index.Index, cfg ingest.Config) *ingest.Pipeline {
	t.Helper()
	embedder := embed.New(mock, log.NewNop())
	extractor := extract.NewService(nil, log.NewNop())
	return ingest.New(extractor, embedder, idx, cfg, log.NewNop())
}

func TestRunIngestsCorpus(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"federal/medicaid.txt":    regulationText(30),
		"california/medi-cal.txt": regulationText(20),
		"sf-local/calfresh.txt":   regulationText(10),
	})

	idx := index.NewMemory(log.NewNop())
	p := newPipeline(t, &testutil.MockEmbedder{}, idx, testConfig())

	stats, err := p.Run(context.Background(), corpus)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Documents != 3 {
		t.Errorf("Documents = %d, want 3", stats.Documents)
	}
	if stats.Chunks == 0 {
		t.Error("Chunks = 0, want > 0")
	}

	count, _ := idx.Count(context.Background())
	if count != stats.Chunks {
		t.Errorf("index Count() = %d, want %d", count, stats.Chunks)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"federal/medicaid.txt":    regulationText(30),
		"california/medi-cal.txt": regulationText(15),
	})

	idx := index.NewMemory(log.NewNop())
	p := newPipeline(t, &testutil.MockEmbedder{}, idx, testConfig())
	ctx := context.Background()

	if _, err := p.Run(ctx, corpus); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	firstIDs := idx.IDs()

	if _, err := p.Run(ctx, corpus); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	secondIDs := idx.IDs()

	if !slices.Equal(firstIDs, secondIDs) {
		t.Errorf("re-ingestion changed id set:\nfirst:  %v\nsecond: %v", firstIDs, secondIDs)
	}
}

func TestRunSkipsOversizedFiles(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"federal/huge.txt":  regulationText(50),
		"federal/small.txt": regulationText(10),
	})

	cfg := testConfig()
	cfg.MaxFileSize = 2048 // huge.txt exceeds this

	idx := index.NewMemory(log.NewNop())
	p := newPipeline(t, &testutil.MockEmbedder{}, idx, cfg)

	stats, err := p.Run(context.Background(), corpus)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Documents != 1 {
		t.Errorf("Documents = %d, want 1", stats.Documents)
	}
	if stats.DocumentsSkipped != 1 {
		t.Errorf("DocumentsSkipped = %d, want 1", stats.DocumentsSkipped)
	}
}

func TestRunSkipsShortDocuments(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"federal/stub.txt": "placeholder page",
		"federal/real.txt": regulationText(10),
	})

	idx := index.NewMemory(log.NewNop())
	p := newPipeline(t, &testutil.MockEmbedder{}, idx, testConfig())

	stats, err := p.Run(context.Background(), corpus)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Documents != 1 {
		t.Errorf("Documents = %d, want 1", stats.Documents)
	}
	if stats.DocumentsSkipped != 1 {
		t.Errorf("DocumentsSkipped = %d, want 1", stats.DocumentsSkipped)
	}
}

func TestRunSkipsUnsupportedFiles(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"federal/data.csv": regulationText(10),
		"federal/real.txt": regulationText(10),
	})

	idx := index.NewMemory(log.NewNop())
	p := newPipeline(t, &testutil.MockEmbedder{}, idx, testConfig())

	stats, err := p.Run(context.Background(), corpus)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Documents != 1 {
		t.Errorf("Documents = %d, want 1", stats.Documents)
	}
}

func TestRunRecoversFromRateLimits(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"federal/medicaid.txt": regulationText(10),
	})

	// First two embedding calls hit the quota, then the provider recovers.
	mock := &testutil.MockEmbedder{RateLimitUntil: 2}
	idx := index.NewMemory(log.NewNop())
	p := newPipeline(t, mock, idx, testConfig())

	stats, err := p.Run(context.Background(), corpus)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Documents != 1 {
		t.Errorf("Documents = %d, want 1", stats.Documents)
	}
	if stats.ChunksSkipped != 0 {
		t.Errorf("ChunksSkipped = %d, want 0", stats.ChunksSkipped)
	}
}

func TestRunRetriesTransientUpsertFailures(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"federal/medicaid.txt": regulationText(10),
	})

	// The first write is rejected with a rate-limit error; the retry
	// must land it instead of dropping the chunk.
	mem := index.NewMemory(log.NewNop())
	idx := &flakyIndex{Index: mem, failures: 1}
	p := newPipeline(t, &testutil.MockEmbedder{}, idx, testConfig())

	stats, err := p.Run(context.Background(), corpus)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.ChunksSkipped != 0 {
		t.Errorf("ChunksSkipped = %d, want 0 (transient write failures must be retried)", stats.ChunksSkipped)
	}
	if stats.Chunks == 0 {
		t.Error("Chunks = 0, want > 0")
	}

	count, _ := mem.Count(context.Background())
	if count != stats.Chunks {
		t.Errorf("index Count() = %d, want %d", count, stats.Chunks)
	}
}

func TestRunSkipsChunksAfterRetryExhaustion(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"federal/medicaid.txt": regulationText(10),
	})

	// Every call fails with a rate-limit error; retries exhaust.
	mock := &testutil.MockEmbedder{RateLimitUntil: 1 << 30}
	idx := index.NewMemory(log.NewNop())
	p := newPipeline(t, mock, idx, testConfig())

	stats, err := p.Run(context.Background(), corpus)
	if err != nil {
		t.Fatalf("Run() error = %v, want skip-and-continue", err)
	}
	if stats.Chunks != 0 {
		t.Errorf("Chunks = %d, want 0", stats.Chunks)
	}
	if stats.ChunksSkipped == 0 {
		t.Error("ChunksSkipped = 0, want > 0")
	}

	count, _ := idx.Count(context.Background())
	if count != 0 {
		t.Errorf("index Count() = %d, want 0", count)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"federal/a.txt": regulationText(10),
		"federal/b.txt": regulationText(10),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	idx := index.NewMemory(log.NewNop())
	p := newPipeline(t, &testutil.MockEmbedder{}, idx, testConfig())

	_, err := p.Run(ctx, corpus)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"federal/a.txt": regulationText(10),
	})

	cfg := testConfig()
	cfg.DocumentDelay = 200 * time.Millisecond

	idx := index.NewMemory(log.NewNop())
	first := newPipeline(t, &testutil.MockEmbedder{}, idx, cfg)
	second := newPipeline(t, &testutil.MockEmbedder{}, idx, testConfig())

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := first.Run(context.Background(), corpus)
		done <- err
	}()

	<-started
	time.Sleep(50 * time.Millisecond) // let the first run take the lock

	_, err := second.Run(context.Background(), corpus)
	if !errors.Is(err, ingest.ErrLocked) {
		t.Errorf("concurrent Run() error = %v, want ErrLocked", err)
	}

	if err := <-done; err != nil {
		t.Errorf("first Run() error = %v", err)
	}
}

func TestStatsThroughput(t *testing.T) {
	s := ingest.Stats{Chunks: 30, Elapsed: 10 * time.Second}
	if got := s.Throughput(); got != 3 {
		t.Errorf("Throughput() = %v, want 3", got)
	}

	var zero ingest.Stats
	if got := zero.Throughput(); got != 0 {
		t.Errorf("zero Throughput() = %v, want 0", got)
	}
}
