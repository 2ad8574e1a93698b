package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Counter reports how many entries the vector index holds. Used by the
// readiness probe so a server with an unreachable index reports not
// ready instead of serving failing searches.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// health is the liveness probe.
func health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness probes the vector index.
func readiness(counter Counter, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		n, err := counter.Count(ctx)
		if err != nil {
			logger.Warn("readiness check failed", "error", err)
			WriteError(w, http.StatusServiceUnavailable, "not_ready", "vector index unavailable", logger)
			return
		}

		WriteJSON(w, http.StatusOK, map[string]any{
			"status":  "ready",
			"entries": n,
		})
	})
}
