package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// HTML extracts the readable article body from an HTML document,
// stripping navigation, boilerplate and markup.
type HTML struct {
	baseURL *url.URL
}

// NewHTML creates the readability-based HTML extractor.
func NewHTML() *HTML {
	// Local corpus files have no real URL; readability only uses it to
	// resolve relative links, which we discard anyway.
	base, _ := url.Parse("https://localhost/")
	return &HTML{baseURL: base}
}

// Extract returns the document's readable text content.
func (h *HTML) Extract(ctx context.Context, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	article, err := readability.FromReader(bytes.NewReader(data), h.baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: parsing html: %w", ErrExtraction, err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("%w: html document has no readable text", ErrExtraction)
	}
	return text, nil
}
