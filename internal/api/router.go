// Package api serves context building and search over HTTP using chi.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/qcrao/copilot/internal/assistant"
)

// Assistant is the part of assistant.Service the handlers call.
type Assistant interface {
	BuildWith(ctx context.Context, opts assistant.BuildOptions) (assistant.Built, error)
	SearchLimit(ctx context.Context, query string, limit int) (assistant.SearchResult, error)
}

// NewRouter creates a chi router with the health check and all API routes
// mounted. searchLimit is used when a request names no limit.
func NewRouter(svc Assistant, searchLimit int) chi.Router {
	h := NewHandler(svc, searchLimit)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/context", h.Context)
		r.Get("/search", h.Search)
	})

	return r
}
