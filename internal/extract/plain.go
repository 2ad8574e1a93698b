package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Plain passes UTF-8 text documents through unchanged.
type Plain struct{}

// NewPlain creates the plain-text extractor.
func NewPlain() *Plain { return &Plain{} }

// Extract validates encoding and returns the trimmed text.
func (p *Plain) Extract(_ context.Context, data []byte, _ string) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: document is not valid UTF-8", ErrExtraction)
	}
	return strings.TrimSpace(string(data)), nil
}
