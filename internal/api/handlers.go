package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/lectern/internal/annotations"
	"github.com/starford/lectern/internal/bookservice"
	"github.com/starford/lectern/internal/index"
	"github.com/starford/lectern/internal/models"
	"github.com/starford/lectern/internal/progress"
)

const maxConfigBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc        *bookservice.Service
	onProgress progress.Update
}

// NewHandler creates a new Handler. onProgress, if non-nil, receives sync
// and download progress.
func NewHandler(svc *bookservice.Service, onProgress progress.Update) *Handler {
	return &Handler{svc: svc, onProgress: onProgress}
}

// ListBooks handles GET /api/books.
//
//	@Summary		List the library in manifest order
//	@Tags			books
//	@Produce		json
//	@Param			removed	query		bool	false	"Include removed books"
//	@Success		200		{object}	BookListResponse
//	@Security		BearerAuth
//	@Router			/books [get]
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	withRemoved, _ := strconv.ParseBool(r.URL.Query().Get("removed"))
	books, err := h.svc.ListBooks(r.Context(), withRemoved)
	if err != nil {
		writeError(w, "list books", err)
		return
	}
	writeJSON(w, http.StatusOK, BookListResponse{Books: books})
}

// RemoveBook handles DELETE /api/books/{hash}.
//
//	@Summary		Remove a book, leaving a tombstone for sync
//	@Tags			books
//	@Param			hash	path		string	true	"Book hash"
//	@Success		200		{object}	models.Book
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/books/{hash} [delete]
func (h *Handler) RemoveBook(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.RemoveBook(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, "remove book", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// MoveToTop handles POST /api/books/{hash}/top.
func (h *Handler) MoveToTop(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MoveToTop(r.Context(), chi.URLParam(r, "hash")); err != nil {
		writeError(w, "move to top", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetConfig handles GET /api/books/{hash}/config.
//
//	@Summary		Sync and return a book's reading state
//	@Tags			config
//	@Produce		json
//	@Param			hash	path		string	true	"Book hash"
//	@Success		200		{object}	BookConfig
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/books/{hash}/config [get]
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.GetConfig(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, "get config", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// PutConfig handles PUT /api/books/{hash}/config.
//
//	@Summary		Store a book's reading state and sync it
//	@Tags			config
//	@Accept			json
//	@Produce		json
//	@Param			hash	path		string		true	"Book hash"
//	@Param			body	body		BookConfig	true	"Reading state"
//	@Success		200		{object}	BookConfig
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/books/{hash}/config [put]
func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxConfigBytes)
	cfg := models.NewBookConfig()
	if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	merged, err := h.svc.SaveConfig(r.Context(), chi.URLParam(r, "hash"), cfg)
	if err != nil {
		writeError(w, "save config", err)
		return
	}
	writeJSON(w, http.StatusOK, merged)
}

// SyncBookshelf handles POST /api/books/{hash}/bookshelf/sync.
func (h *Handler) SyncBookshelf(w http.ResponseWriter, r *http.Request) {
	shelf, err := h.svc.SyncBookshelf(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, "sync bookshelf", err)
		return
	}
	writeJSON(w, http.StatusOK, BookshelfResponse{Bookshelf: shelf})
}

// SyncLibrary handles POST /api/sync.
//
//	@Summary		Synchronize the library with the remote
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	SyncResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sync [post]
func (h *Handler) SyncLibrary(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.SyncLibrary(r.Context(), h.onProgress)
	if err != nil {
		writeError(w, "sync library", err)
		return
	}
	resp := SyncResponse{Pulled: rep.Pulled, Pushed: rep.Pushed, Removed: rep.Removed}
	if rep.PushErr != nil {
		resp.Warning = rep.PushErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across highlights
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

func nonNilFailures(f []annotations.LookupFailure) []annotations.LookupFailure {
	if f == nil {
		return []annotations.LookupFailure{}
	}
	return f
}
