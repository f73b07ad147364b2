package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/docservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Indexed documents.
	r.Get("/documents", h.ListDocuments)
	r.Delete("/documents", h.DeleteDocument)

	// Outline queries.
	r.Get("/outline", h.Outline)
	r.Get("/section", h.Section)
	r.Get("/tasks", h.Tasks)
	r.Get("/task", h.Task)
	r.Get("/stats", h.Stats)
	r.Get("/search", h.Search)

	// Editing buffers.
	r.Route("/buffers", func(r chi.Router) {
		r.Get("/", h.ListBuffers)
		r.Post("/", h.OpenBuffer)
		r.Delete("/{id}", h.CloseBuffer)
		r.Post("/{id}/edits", h.ApplyEdits)
		r.Post("/{id}/save", h.SaveBuffer)
		r.Get("/{id}/outline", h.BufferOutline)
	})

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
