// Package regdoc defines the core data model for the regulation corpus:
// chunks of regulatory text, their index entries, and the authority
// hierarchy used to break near-ties during ranking.
package regdoc

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultHierarchy is the ordered set of authority levels for the
// Medicaid/SNAP corpus, highest authority first. The names double as
// directory names under the corpus root and as the persisted hierarchy
// metadata value.
var DefaultHierarchy = []string{"federal", "california", "sf-local"}

// Priorities maps each hierarchy level to a numeric authority priority.
// The first level gets the highest priority (len(levels)), the last gets 1.
// Levels not present in the map rank at priority 0.
func Priorities(levels []string) map[string]int {
	m := make(map[string]int, len(levels))
	for i, level := range levels {
		m[level] = len(levels) - i
	}
	return m
}

// Chunk is a bounded segment of regulatory text, the unit of embedding
// and retrieval.
type Chunk struct {
	Content    string // the raw text segment
	Source     string // originating document path (e.g. "federal/42-cfr-435.pdf")
	Hierarchy  string // authority level ("federal", "california", "sf-local", ...)
	Filename   string // base name of the originating document
	ChunkIndex int    // 0-based position within the source document
}

// Entry is a chunk plus its embedding, as persisted in the vector index.
// The ID is deterministic so re-ingesting the same document overwrites
// rather than duplicates.
type Entry struct {
	ID     string
	Vector []float32
	Chunk  Chunk
}

// Match is a transient search result: an index entry with its computed
// cosine similarity to the query. It exists only within a single
// retrieval call.
type Match struct {
	Entry      Entry
	Similarity float64
}

// EntryID builds the deterministic index id for a chunk:
// {hierarchy}-{document stem}-{chunkIndex}. The stem is the filename
// without its extension, matching the persisted id format.
func EntryID(hierarchy, filename string, chunkIndex int) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	return fmt.Sprintf("%s-%s-%d", hierarchy, stem, chunkIndex)
}

// Metadata is the JSON shape of a chunk's metadata as persisted alongside
// its embedding. Deserialization must go through Validate so entries with
// missing required fields are quarantined instead of propagated untyped.
type Metadata struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	Hierarchy  string `json:"hierarchy"`
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunk_index"`
}

// NewMetadata builds the persisted metadata record for a chunk.
func NewMetadata(c Chunk) Metadata {
	return Metadata{
		Content:    c.Content,
		Source:     c.Source,
		Hierarchy:  c.Hierarchy,
		Filename:   c.Filename,
		ChunkIndex: c.ChunkIndex,
	}
}

// Validate reports whether the metadata carries every required field.
// Content, source, and hierarchy are mandatory; a record missing any of
// them must be rejected at the deserialization boundary.
func (m Metadata) Validate() error {
	var missing []string
	if m.Content == "" {
		missing = append(missing, "content")
	}
	if m.Source == "" {
		missing = append(missing, "source")
	}
	if m.Hierarchy == "" {
		missing = append(missing, "hierarchy")
	}
	if len(missing) > 0 {
		return fmt.Errorf("metadata missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Chunk converts validated metadata back into the domain chunk.
func (m Metadata) Chunk() Chunk {
	return Chunk{
		Content:    m.Content,
		Source:     m.Source,
		Hierarchy:  m.Hierarchy,
		Filename:   m.Filename,
		ChunkIndex: m.ChunkIndex,
	}
}

// DecodeMetadata parses and validates a persisted metadata payload.
func DecodeMetadata(raw []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return Metadata{}, fmt.Errorf("parsing metadata: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}
