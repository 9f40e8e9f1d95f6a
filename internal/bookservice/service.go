// Package bookservice coordinates the library, the syncer, the annotation
// importer and the highlight index behind one API for the HTTP, MCP and CLI
// surfaces.
package bookservice

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/starford/lectern/internal/annotations"
	"github.com/starford/lectern/internal/apperr"
	"github.com/starford/lectern/internal/index"
	"github.com/starford/lectern/internal/library"
	"github.com/starford/lectern/internal/models"
	"github.com/starford/lectern/internal/progress"
	"github.com/starford/lectern/internal/syncer"
)

// BookListItem is a book row as listed to clients.
type BookListItem struct {
	models.Book
	HasBody bool `json:"has_body"`
}

// Service coordinates library, sync and index operations.
type Service struct {
	lib      *library.Library
	sync     *syncer.Syncer
	importer *annotations.Importer
	db       *index.DB
	logger   *slog.Logger
}

// NewService creates a new book service. db may be nil, in which case
// search is unavailable and no reindexing happens.
func NewService(s *syncer.Syncer, importer *annotations.Importer, db *index.DB, logger *slog.Logger) *Service {
	return &Service{lib: s.Library(), sync: s, importer: importer, db: db, logger: logger}
}

// Syncer exposes the underlying syncer.
func (s *Service) Syncer() *syncer.Syncer { return s.sync }

// ListBooks returns the manifest in order. Removed rows are skipped unless
// withRemoved is set.
func (s *Service) ListBooks(_ context.Context, withRemoved bool) ([]BookListItem, error) {
	books := s.lib.Books()
	out := make([]BookListItem, 0, len(books))
	for _, b := range books {
		if b.Removed && !withRemoved {
			continue
		}
		has, err := s.lib.Store().Exists(b.File(b.BodyName()))
		if err != nil {
			return nil, err
		}
		out = append(out, BookListItem{Book: b, HasBody: has})
	}
	return out, nil
}

// GetBook returns the live book with hash.
func (s *Service) GetBook(_ context.Context, hash string) (models.Book, error) {
	b, ok := s.lib.Get(hash)
	if !ok || b.Removed {
		return models.Book{}, fmt.Errorf("book %q: %w", hash, apperr.ErrNotFound)
	}
	return b, nil
}

// AddBook imports an EPUB body into the local library.
func (s *Service) AddBook(ctx context.Context, content []byte) (models.Book, error) {
	b, err := s.lib.Add(content)
	if err != nil {
		return models.Book{}, err
	}
	s.reindex(ctx)
	return b, nil
}

// RemoveBook deletes a book locally, leaving a tombstone row for the next
// library sync.
func (s *Service) RemoveBook(ctx context.Context, hash string) (models.Book, error) {
	if _, err := s.GetBook(ctx, hash); err != nil {
		return models.Book{}, err
	}
	b, err := s.lib.Remove(hash)
	if err != nil {
		return models.Book{}, err
	}
	if s.db != nil {
		if err := s.db.DeleteBook(hash); err != nil {
			s.logger.Warn("bookservice: unindex failed", slog.String("hash", hash), slog.Any("error", err))
		}
	}
	return b, nil
}

// MoveToTop moves a book to the front of the manifest.
func (s *Service) MoveToTop(ctx context.Context, hash string) error {
	if _, err := s.GetBook(ctx, hash); err != nil {
		return err
	}
	return s.lib.MoveToTop(hash)
}

// GetConfig syncs and returns a book's reading state. A failed push still
// returns the merged config.
func (s *Service) GetConfig(ctx context.Context, hash string) (*models.BookConfig, error) {
	b, err := s.GetBook(ctx, hash)
	if err != nil {
		return nil, err
	}
	return s.syncConfig(ctx, b)
}

// SaveConfig stores a client-edited config and syncs it.
func (s *Service) SaveConfig(ctx context.Context, hash string, cfg *models.BookConfig) (*models.BookConfig, error) {
	b, err := s.GetBook(ctx, hash)
	if err != nil {
		return nil, err
	}
	if err := s.sync.SaveConfig(b, cfg); err != nil {
		return nil, err
	}
	return s.syncConfig(ctx, b)
}

func (s *Service) syncConfig(ctx context.Context, b models.Book) (*models.BookConfig, error) {
	merged, err := s.sync.SyncBook(ctx, b, nil)
	if err != nil && merged == nil {
		return nil, err
	}
	if err != nil {
		s.logger.Warn("bookservice: config push failed", slog.String("hash", b.Hash), slog.Any("error", err))
	}
	s.reindex(ctx)
	return merged, nil
}

// SyncBookshelf reconciles a book's shelf and returns it; nil is the
// default shelf.
func (s *Service) SyncBookshelf(ctx context.Context, hash string) (*string, error) {
	b, err := s.GetBook(ctx, hash)
	if err != nil {
		return nil, err
	}
	return s.sync.SyncBookshelf(ctx, b, nil)
}

// BookNotes returns a book's live highlights from the local config.
func (s *Service) BookNotes(ctx context.Context, hash string) ([]models.Note, error) {
	b, err := s.GetBook(ctx, hash)
	if err != nil {
		return nil, err
	}
	cfg, err := s.sync.LoadConfig(b)
	if err != nil {
		return nil, err
	}
	out := make([]models.Note, 0, len(cfg.Notes))
	for _, n := range cfg.Notes {
		if n.Removed == 0 {
			out = append(out, n)
		}
	}
	return out, nil
}

// Import places Kindle highlights into a book.
func (s *Service) Import(ctx context.Context, hash string, export io.Reader, onUpdate progress.Update) ([]annotations.LookupFailure, error) {
	b, err := s.GetBook(ctx, hash)
	if err != nil {
		return nil, err
	}
	failed, err := s.importer.Import(ctx, b, export, onUpdate)
	if err != nil {
		return nil, err
	}
	s.reindex(ctx)
	return failed, nil
}

// SyncLibrary runs a library synchronization.
func (s *Service) SyncLibrary(ctx context.Context, onUpdate progress.Update) (syncer.Report, error) {
	rep, err := s.sync.SyncBooks(ctx, onUpdate)
	if err != nil {
		return rep, err
	}
	s.reindex(ctx)
	return rep, nil
}

// SyncBook syncs a single book's reading state.
func (s *Service) SyncBook(ctx context.Context, hash string) (*models.BookConfig, error) {
	return s.GetConfig(ctx, hash)
}

// Search delegates highlight search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.db == nil {
		return nil, apperr.Precondition("search index is not enabled")
	}
	return s.db.Search(query, limit)
}

// reindex brings the highlight index in line with the library. Failures
// only log; the index is a cache.
func (s *Service) reindex(_ context.Context) {
	if s.db == nil {
		return
	}
	if err := index.Sync(s.db, s.lib.Store(), s.logger); err != nil {
		s.logger.Warn("bookservice: reindex failed", slog.Any("error", err))
	}
}
