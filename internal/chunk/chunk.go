// Package chunk splits extracted document text into bounded, overlapping
// segments for embedding.
//
// Two splitters exist. Split is the canonical boundary-aware splitter used
// by the batch ingestion pipeline: it prefers to end a chunk at the last
// sentence terminator or newline inside the window, producing cleaner
// semantic chunks. FixedStride is the legacy variant kept for the
// in-memory/offline path: it advances by a constant stride with no
// boundary awareness.
package chunk

import (
	"fmt"
	"strings"
)

const (
	// DefaultSize and DefaultOverlap are tuned for batch ingestion.
	DefaultSize    = 2000
	DefaultOverlap = 300

	// MinChunkLen is the noise threshold: trimmed chunks shorter than
	// this are discarded.
	MinChunkLen = 100
)

// Split splits text into chunks of at most size bytes with the given
// overlap, breaking at sentence or line boundaries where possible.
//
// Within each window it scans backward for the last '.' or '\n'; if that
// break point lies past the window midpoint, the chunk ends there and the
// next window starts at breakPoint+1-overlap. Otherwise the chunk takes
// the full window and the next window starts at end-overlap.
//
// Chunks are trimmed and those shorter than MinChunkLen are dropped. The
// result is a one-shot slice; no chunk is ever empty. Text shorter than
// size yields at most a single chunk.
func Split(text string, size, overlap int) ([]string, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := min(start+size, len(text))
		piece := text[start:end]

		if end < len(text) {
			lastPeriod := strings.LastIndexByte(piece, '.')
			lastNewline := strings.LastIndexByte(piece, '\n')
			breakPoint := max(lastPeriod, lastNewline)

			if breakPoint > size/2 {
				piece = text[start : start+breakPoint+1]
				start = start + breakPoint + 1 - overlap
			} else {
				start = end - overlap
			}
		} else {
			start = end
		}

		if trimmed := strings.TrimSpace(piece); len(trimmed) >= MinChunkLen {
			chunks = append(chunks, trimmed)
		}
	}

	return chunks, nil
}

// FixedStride splits text by advancing size-overlap bytes per window,
// unconditionally. Legacy path for small in-memory corpora; Split is the
// canonical splitter. The same trim and minimum-length filter applies.
func FixedStride(text string, size, overlap int) ([]string, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}

	var chunks []string
	for start := 0; start < len(text); start += size - overlap {
		end := min(start+size, len(text))
		if trimmed := strings.TrimSpace(text[start:end]); len(trimmed) >= MinChunkLen {
			chunks = append(chunks, trimmed)
		}
	}
	return chunks, nil
}

// validate rejects window parameters that cannot make forward progress.
// The overlap must leave more than half the window as fresh text, or the
// boundary-aware restart could walk backward.
func validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap > size/2 {
		return fmt.Errorf("overlap must be in [0, size/2], got %d for size %d", overlap, size)
	}
	return nil
}
