package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/voxsync/internal/notesvc"
	"github.com/starford/voxsync/internal/syncer"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *notesvc.Service, syn *syncer.Syncer, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, syn)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Sync control.
	r.Get("/status", h.Status)
	r.Post("/sync", h.TriggerSync)

	// Synced documents.
	r.Get("/recordings", h.ListRecordings)
	r.Get("/notes/*", h.GetNote)
	r.Delete("/notes/*", h.DeleteNote)
	r.Post("/detach/*", h.DetachNote)

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
