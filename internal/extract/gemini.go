package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// extractPrompt asks the model for a faithful transcription, not a
// summary. Regulation text must survive extraction verbatim because
// eligibility answers cite it.
const extractPrompt = "Extract all text content from this document. " +
	"Return only the extracted text, preserving section numbers, headings " +
	"and paragraph structure. Do not summarize or omit anything."

// defaultExtractTimeout bounds one document extraction. Large PDFs take
// a while to process inline, so this is much looser than the embedding
// timeout.
const defaultExtractTimeout = 120 * time.Second

// Gemini extracts text from PDFs by sending the raw bytes inline to a
// Gemini model.
type Gemini struct {
	client  *genai.Client
	model   string
	logger  *slog.Logger
	timeout time.Duration
}

// NewGemini creates a PDF extractor backed by the given model
// (typically gemini-2.5-flash).
func NewGemini(client *genai.Client, model string, logger *slog.Logger) *Gemini {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{
		client:  client,
		model:   model,
		logger:  logger,
		timeout: defaultExtractTimeout,
	}
}

// Extract sends the document inline and returns the model's transcription.
func (g *Gemini) Extract(ctx context.Context, data []byte, mime string) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(data, mime),
		genai.NewPartFromText(extractPrompt),
	}, genai.RoleUser)

	resp, err := g.client.Models.GenerateContent(opCtx, g.model, []*genai.Content{content}, nil)
	if err != nil {
		return "", fmt.Errorf("%w: gemini generate: %w", ErrExtraction, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: gemini returned no text", ErrExtraction)
	}

	g.logger.Debug("extracted document",
		"model", g.model,
		"input_bytes", len(data),
		"output_chars", len(text),
		"duration", time.Since(start))
	return text, nil
}
