package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/lectern/internal/bookservice"
	"github.com/starford/lectern/internal/progress"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// onProgress, if non-nil, receives progress of syncs started over HTTP.
func NewRouter(svc *bookservice.Service, authEnabled bool, token string, sseHandler http.Handler, onProgress progress.Update) chi.Router {
	h := NewHandler(svc, onProgress)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Library.
	r.Get("/books", h.ListBooks)
	r.Post("/books", h.AddBook)
	r.Delete("/books/{hash}", h.RemoveBook)
	r.Post("/books/{hash}/top", h.MoveToTop)

	// Reading state.
	r.Get("/books/{hash}/config", h.GetConfig)
	r.Put("/books/{hash}/config", h.PutConfig)
	r.Post("/books/{hash}/bookshelf/sync", h.SyncBookshelf)
	r.Post("/books/{hash}/import", h.ImportNotes)

	r.Post("/sync", h.SyncLibrary)
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
