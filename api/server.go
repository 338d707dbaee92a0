/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /api/records/*        Schedule record queries and exports
  /api/variance/*       Reconciled Soll/Ist/Delta views
  /api/ingest/*         Ingestion trigger and status
  /api/admin/*          Rebuild and rewrite operations

SECURITY NOTE:
  No authentication middleware. The service is meant to run behind the
  school's reverse proxy, which handles auth.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/records", func(r chi.Router) {
			r.Get("/", h.ListRecords)
			r.Get("/export", h.ExportRecords)
			r.Get("/per-day", h.RecordsPerDay)
		})

		r.Route("/variance/{schoolYear}", func(r chi.Router) {
			r.Get("/", h.GetVariance)
			r.Get("/export", h.ExportVariance)
			r.Get("/by-subject", h.VarianceBySubject)
			r.Get("/by-class", h.VarianceByClass)
		})

		r.Route("/ingest", func(r chi.Router) {
			r.Post("/run", h.RunIngestion)
			r.Get("/status", h.IngestStatus)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/quota/rebuild", h.RebuildQuota)
			r.Post("/records/rewrite", h.RewriteRecords)
		})
	})

	return r
}
