// Package app provides application initialization and dependency
// wiring: configuration, tracing, the database pool, the Genkit
// embedder, the Gemini extraction client, and the domain services
// built on top of them.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicaid/regsearch/internal/config"
	"github.com/civicaid/regsearch/internal/embed"
	"github.com/civicaid/regsearch/internal/extract"
	"github.com/civicaid/regsearch/internal/index"
	"github.com/civicaid/regsearch/internal/ingest"
	"github.com/civicaid/regsearch/internal/search"
)

// App is the application container. Build it with Setup; release
// resources with Close.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// Core services
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool

	// Domain services
	Index     *index.Postgres
	Embed     *embed.Service
	Extractor *extract.Service
	Engine    *search.Engine
	Pipeline  *ingest.Pipeline

	// Lifecycle
	dbCleanup   func()
	otelCleanup func()
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down")

	if a.dbCleanup != nil {
		a.dbCleanup()
		a.Logger.Debug("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
