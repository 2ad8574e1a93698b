package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/civicaid/regsearch/internal/regdoc"
	"github.com/civicaid/regsearch/internal/search"
)

// maxQueryLen bounds query text; eligibility questions are short and
// anything longer is abuse or a client bug.
const maxQueryLen = 1000

// maxBodyBytes bounds the request body read.
const maxBodyBytes = 64 << 10

// Searcher is the retrieval capability the API exposes.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...search.Option) ([]regdoc.Match, error)
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK"`
}

type searchResult struct {
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Hierarchy  string  `json:"hierarchy"`
	Similarity float64 `json:"similarity"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunkIndex"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchHandler struct {
	searcher    Searcher
	defaultTopK int
	logger      *slog.Logger
}

// search handles POST /api/v1/search. Failures never fabricate
// results; the client gets a structured error instead.
func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	if req.Query == "" {
		WriteError(w, http.StatusBadRequest, "missing_query", "query is required", h.logger)
		return
	}
	if len(req.Query) > maxQueryLen {
		WriteError(w, http.StatusBadRequest, "query_too_long", "query must be 1000 characters or fewer", h.logger)
		return
	}
	if req.TopK < 0 || req.TopK > search.MaxTopK {
		WriteError(w, http.StatusBadRequest, "invalid_topk", "topK must be between 1 and 100", h.logger)
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = h.defaultTopK
	}
	var opts []search.Option
	if topK > 0 {
		opts = append(opts, search.WithTopK(topK))
	}

	matches, err := h.searcher.Search(r.Context(), req.Query, opts...)
	if err != nil {
		h.logger.Error("search failed",
			"error", err,
			"request_id", requestIDFromContext(r.Context()))
		WriteError(w, http.StatusInternalServerError, "search_failed", "failed to search regulations", h.logger)
		return
	}

	resp := searchResponse{Results: make([]searchResult, 0, len(matches))}
	for _, m := range matches {
		resp.Results = append(resp.Results, searchResult{
			Content:    m.Entry.Chunk.Content,
			Source:     m.Entry.Chunk.Source,
			Hierarchy:  m.Entry.Chunk.Hierarchy,
			Similarity: m.Similarity,
			Filename:   m.Entry.Chunk.Filename,
			ChunkIndex: m.Entry.Chunk.ChunkIndex,
		})
	}
	WriteJSON(w, http.StatusOK, resp)
}
