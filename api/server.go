// Package api exposes regulation search over HTTP as a JSON API for
// the external eligibility workflow.
package api

import (
	"errors"
	"log/slog"
	"net/http"
)

// ServerConfig configures the API server.
type ServerConfig struct {
	Logger     *slog.Logger
	Searcher   Searcher // Required
	Counter    Counter  // Required: readiness probe target
	TrustProxy bool     // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst  int      // Rate limiter burst size per IP (0 = default 60)

	// DefaultTopK is the result count used when a request omits topK
	// (0 = engine default).
	DefaultTopK int
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if cfg.Counter == nil {
		return nil, errors.New("index counter is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sh := &searchHandler{searcher: cfg.Searcher, defaultTopK: cfg.DefaultTopK, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/search", sh.search)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → RateLimit → Routes
	// RequestID must precede Logging so request_id appears in log attributes.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack so rate limiting never
	// starves orchestrator checks.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /healthz", health)
	topMux.Handle("GET /readyz", readiness(cfg.Counter, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
