// Package extract converts regulation documents into plain text for
// chunking. Each supported format has its own Extractor; Service routes
// a document to the right one by MIME type.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// ErrExtraction marks any text extraction failure.
var ErrExtraction = errors.New("text extraction failed")

// ErrUnsupportedFormat is returned for MIME types no extractor handles.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Extractor converts one document format into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mime string) (string, error)
}

// Service routes documents to format-specific extractors.
type Service struct {
	pdf    Extractor
	html   Extractor
	plain  Extractor
	logger *slog.Logger
}

// NewService builds the extraction front door. A nil pdf extractor
// disables PDF support (e.g. offline ingestion without an API key).
func NewService(pdf Extractor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pdf:    pdf,
		html:   NewHTML(),
		plain:  NewPlain(),
		logger: logger,
	}
}

// Extract dispatches on MIME type.
func (s *Service) Extract(ctx context.Context, data []byte, mime string) (string, error) {
	switch {
	case mime == "application/pdf":
		if s.pdf == nil {
			return "", fmt.Errorf("%w: no PDF extractor configured", ErrUnsupportedFormat)
		}
		return s.pdf.Extract(ctx, data, mime)
	case mime == "text/html":
		return s.html.Extract(ctx, data, mime)
	case strings.HasPrefix(mime, "text/"):
		return s.plain.Extract(ctx, data, mime)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mime)
	}
}

// MIMEForPath maps a file extension to the MIME type Extract expects.
// Returns "" for extensions the pipeline does not ingest.
func MIMEForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".html", ".htm":
		return "text/html"
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	default:
		return ""
	}
}
