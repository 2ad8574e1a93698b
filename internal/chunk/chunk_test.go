package chunk

import (
	"strings"
	"testing"
)

// sentences builds deterministic text of roughly n bytes composed of
// short sentences, so the splitter has break points to work with.
func sentences(n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		b.WriteString("Applicants must provide proof of household income and residency. ")
	}
	return b.String()[:n]
}

func TestSplitScenario(t *testing.T) {
	// 2500 characters, chunkSize=1000, overlap=100: expect 3 chunks.
	// Plain text without break points exercises the pure window path:
	// windows [0,1000), [900,1900), [1800,2500).
	text := strings.Repeat("a", 2500)

	chunks, err := Split(text, 1000, 100)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("Split() produced %d chunks, want 3", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 1000 {
			t.Errorf("chunk %d length %d exceeds chunk size", i, len(c))
		}
		if len(strings.TrimSpace(c)) < MinChunkLen {
			t.Errorf("chunk %d length %d below minimum threshold", i, len(c))
		}
	}
}

func TestSplitHonorsSentenceBoundary(t *testing.T) {
	// A period placed past the window midpoint: the first chunk must end
	// at the period, not at the full window.
	text := strings.Repeat("a", 800) + "." + strings.Repeat("b", 1700)

	chunks, err := Split(text, 1000, 100)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("Split() produced no chunks")
	}
	if !strings.HasSuffix(chunks[0], ".") {
		t.Errorf("first chunk does not end at sentence boundary: ...%q", chunks[0][len(chunks[0])-10:])
	}
	if len(chunks[0]) != 801 {
		t.Errorf("first chunk length = %d, want 801 (truncated at break point)", len(chunks[0]))
	}
}

func TestSplitIgnoresEarlyBoundary(t *testing.T) {
	// A period before the window midpoint must not truncate the chunk.
	text := strings.Repeat("a", 200) + "." + strings.Repeat("b", 2300)

	chunks, err := Split(text, 1000, 100)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks[0]) != 1000 {
		t.Errorf("first chunk length = %d, want full window 1000", len(chunks[0]))
	}
}

func TestSplitShortText(t *testing.T) {
	// Text shorter than chunk size yields a single chunk.
	text := sentences(500)
	chunks, err := Split(text, 1000, 100)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Split() produced %d chunks, want 1", len(chunks))
	}
	if chunks[0] != strings.TrimSpace(text) {
		t.Error("single chunk does not match trimmed input")
	}
}

func TestSplitDiscardsNoise(t *testing.T) {
	// Below the noise threshold nothing survives.
	chunks, err := Split("too short to matter", 1000, 100)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("Split() kept %d noise chunks, want 0", len(chunks))
	}

	// Whitespace-only input likewise.
	chunks, err = Split(strings.Repeat(" \n\t", 200), 1000, 100)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("Split() kept %d whitespace chunks, want 0", len(chunks))
	}
}

func TestSplitInvariants(t *testing.T) {
	text := sentences(10_000)

	chunks, err := Split(text, DefaultSize, DefaultOverlap)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("Split() produced no chunks for a 10KB document")
	}
	for i, c := range chunks {
		if c == "" {
			t.Fatalf("chunk %d is empty", i)
		}
		if len(c) > DefaultSize {
			t.Errorf("chunk %d length %d exceeds size %d", i, len(c), DefaultSize)
		}
		if len(strings.TrimSpace(c)) < MinChunkLen {
			t.Errorf("chunk %d length %d below minimum", i, len(c))
		}
	}
}

func TestSplitRejectsBadParams(t *testing.T) {
	if _, err := Split("text", 0, 0); err == nil {
		t.Error("Split() accepted zero size")
	}
	if _, err := Split("text", 1000, -1); err == nil {
		t.Error("Split() accepted negative overlap")
	}
	// Overlap past the midpoint can walk the window backward.
	if _, err := Split("text", 1000, 600); err == nil {
		t.Error("Split() accepted overlap > size/2")
	}
}

func TestFixedStride(t *testing.T) {
	text := strings.Repeat("a", 2500)

	chunks, err := FixedStride(text, 1000, 100)
	if err != nil {
		t.Fatalf("FixedStride() error = %v", err)
	}
	// Strides of 900: windows at 0, 900, 1800 → 3 chunks.
	if len(chunks) != 3 {
		t.Fatalf("FixedStride() produced %d chunks, want 3", len(chunks))
	}
	if len(chunks[0]) != 1000 || len(chunks[2]) != 700 {
		t.Errorf("chunk lengths = %d, %d, %d; want 1000, 1000, 700",
			len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func FuzzSplit(f *testing.F) {
	f.Add(sentences(3000), 1000, 100)
	f.Add(strings.Repeat("x", 500), 200, 50)
	f.Add("", 1000, 100)

	f.Fuzz(func(t *testing.T, text string, size, overlap int) {
		chunks, err := Split(text, size, overlap)
		if err != nil {
			return // invalid params are allowed to fail
		}
		for _, c := range chunks {
			if c == "" {
				t.Fatal("empty chunk produced")
			}
			if len(c) > size {
				t.Fatalf("chunk length %d exceeds size %d", len(c), size)
			}
			if len(strings.TrimSpace(c)) < MinChunkLen {
				t.Fatalf("chunk below minimum length survived filter")
			}
		}
	})
}
