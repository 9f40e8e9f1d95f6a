// Package library owns the ordered book manifest (books.json) and the
// per-book directories of a local library. The manifest is kept most
// recently touched first; every mutation goes through Library so that order
// is never rebuilt from scratch.
package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/lectern/internal/apperr"
	"github.com/starford/lectern/internal/models"
	"github.com/starford/lectern/internal/storage"
)

// Library is the in-memory manifest plus the storage it persists to.
type Library struct {
	mu     sync.Mutex
	store  storage.Provider
	books  []models.Book
	logger *slog.Logger
	now    func() int64
}

// Option configures a Library.
type Option func(*Library)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(lib *Library) { lib.logger = l }
}

// WithClock replaces the millisecond clock, for tests.
func WithClock(now func() int64) Option {
	return func(lib *Library) { lib.now = now }
}

// Open loads the manifest from store. A missing manifest is an empty library.
func Open(store storage.Provider, opts ...Option) (*Library, error) {
	lib := &Library{store: store, logger: slog.Default(), now: models.Now}
	for _, o := range opts {
		o(lib)
	}
	if err := lib.Load(); err != nil {
		return nil, err
	}
	return lib, nil
}

// Store returns the underlying storage.
func (l *Library) Store() storage.Provider { return l.store }

// Now returns the library clock in milliseconds.
func (l *Library) Now() int64 { return l.now() }

// Load replaces the in-memory manifest with the persisted one.
func (l *Library) Load() error {
	books, err := ReadManifest(l.store)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.books = books
	l.mu.Unlock()
	return nil
}

// ReadManifest reads books.json from store; a missing file yields an empty list.
func ReadManifest(store storage.Provider) ([]models.Book, error) {
	data, err := store.Read(models.ManifestFile)
	if errors.Is(err, apperr.ErrNotFound) {
		return []models.Book{}, nil
	}
	if err != nil {
		return nil, err
	}
	return DecodeManifest(data)
}

// DecodeManifest parses a books.json document.
func DecodeManifest(data []byte) ([]models.Book, error) {
	books := []models.Book{}
	if err := json.Unmarshal(data, &books); err != nil {
		return nil, fmt.Errorf("library: decode manifest: %w", err)
	}
	return books, nil
}

// Save persists the manifest.
func (l *Library) Save() error {
	_, err := l.Encode()
	return err
}

// Encode persists the manifest and returns the bytes written.
func (l *Library) Encode() ([]byte, error) {
	l.mu.Lock()
	data, err := json.Marshal(l.books)
	l.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("library: encode manifest: %w", err)
	}
	if err := l.store.Write(models.ManifestFile, data, true); err != nil {
		return nil, err
	}
	return data, nil
}

// Books returns a copy of the manifest in display order.
func (l *Library) Books() []models.Book {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Book, len(l.books))
	copy(out, l.books)
	return out
}

// Get returns the book with hash.
func (l *Library) Get(hash string) (models.Book, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexOf(hash); i >= 0 {
		return l.books[i], true
	}
	return models.Book{}, false
}

func (l *Library) indexOf(hash string) int {
	for i := range l.books {
		if l.books[i].Hash == hash {
			return i
		}
	}
	return -1
}

// Insert puts b at the front. A book with the same hash is replaced and moved.
func (l *Library) Insert(b models.Book) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexOf(b.Hash); i >= 0 {
		l.books = append(l.books[:i], l.books[i+1:]...)
	}
	l.books = append([]models.Book{b}, l.books...)
}

// Update applies fn to the book with hash in place.
func (l *Library) Update(hash string, fn func(*models.Book)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexOf(hash)
	if i < 0 {
		return fmt.Errorf("library: book %s: %w", hash, apperr.ErrNotFound)
	}
	fn(&l.books[i])
	return nil
}

// MoveToTop moves the book to the front of the manifest and persists it.
func (l *Library) MoveToTop(hash string) error {
	l.mu.Lock()
	i := l.indexOf(hash)
	if i < 0 {
		l.mu.Unlock()
		return fmt.Errorf("library: book %s: %w", hash, apperr.ErrNotFound)
	}
	b := l.books[i]
	copy(l.books[1:i+1], l.books[:i])
	l.books[0] = b
	l.mu.Unlock()
	return l.Save()
}
