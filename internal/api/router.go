package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/laguz/internal/docservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Read-only analyses.
	r.Get("/scan", h.ListDocuments)
	r.Get("/relevance", h.Relevance)
	r.Get("/plan", h.Plan)
	r.Get("/hub", h.Hub)
	r.Post("/hub", h.WriteHub)

	// Runs.
	r.Post("/runs", h.Run)

	// Backups.
	r.Get("/manifests", h.ListManifests)
	r.Get("/manifests/{id}", h.GetManifest)
	r.Post("/manifests/{id}/restore", h.Restore)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
