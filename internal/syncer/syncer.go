package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/starford/lectern/internal/apperr"
	"github.com/starford/lectern/internal/library"
	"github.com/starford/lectern/internal/models"
	"github.com/starford/lectern/internal/notify"
	"github.com/starford/lectern/internal/progress"
	"github.com/starford/lectern/internal/remote"
)

// Syncer drives synchronization for one local library.
type Syncer struct {
	lib     *library.Library
	sink    notify.Sink
	offline *notify.Once
	logger  *slog.Logger

	mu     sync.RWMutex
	remote remote.Client

	books  keyedMutex
	flight singleflight.Group
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// WithSink sets where user notices go.
func WithSink(sink notify.Sink) Option {
	return func(s *Syncer) { s.sink = sink }
}

// WithRemote starts the syncer connected to c.
func WithRemote(c remote.Client) Option {
	return func(s *Syncer) { s.remote = c }
}

// New creates a Syncer over lib.
func New(lib *library.Library, opts ...Option) *Syncer {
	s := &Syncer{lib: lib, sink: notify.Discard, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	s.offline = notify.NewOnce(s.sink)
	return s
}

// Library returns the manifest owner.
func (s *Syncer) Library() *library.Library { return s.lib }

// Connect dials the remote and switches to it. On failure the syncer is
// left disconnected and an apperr.ErrConnection error is returned.
func (s *Syncer) Connect(ctx context.Context, opts remote.Options) error {
	c, err := remote.Dial(ctx, opts)
	if err != nil {
		s.Disconnect()
		return err
	}
	s.mu.Lock()
	s.remote = c
	s.mu.Unlock()
	s.logger.Info("syncer: remote connected", slog.String("url", opts.URL))
	return nil
}

// Disconnect drops the remote; later operations work locally only.
func (s *Syncer) Disconnect() {
	s.mu.Lock()
	s.remote = nil
	s.mu.Unlock()
}

// Remote returns the connected client, or nil.
func (s *Syncer) Remote() remote.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remote
}

// Connected reports whether a remote is configured.
func (s *Syncer) Connected() bool { return s.Remote() != nil }

// Ensure makes book's file available locally. It returns nil, nil without
// touching the network when the file already exists; otherwise it downloads
// and stores the file and returns its content.
func (s *Syncer) Ensure(ctx context.Context, book models.Book, name string, onUpdate progress.Update) ([]byte, error) {
	ok, err := s.lib.Store().Exists(book.File(name))
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}
	rc := s.Remote()
	if rc == nil {
		return nil, apperr.Precondition("%s of %q is not available locally and no remote is connected", name, book.Name)
	}
	return s.fetch(ctx, rc, book, name, onUpdate)
}

// fetch downloads one per-book file unless it already exists locally.
func (s *Syncer) fetch(ctx context.Context, rc remote.Client, book models.Book, name string, onUpdate progress.Update) ([]byte, error) {
	p := book.File(name)
	ok, err := s.lib.Store().Exists(p)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}
	data, err := rc.Read(ctx, p, progress.ForFile(name, onUpdate))
	if err != nil {
		return nil, err
	}
	if err := s.lib.Store().Write(p, data, true); err != nil {
		return nil, err
	}
	return data, nil
}

// EnsureBody returns the book body, downloading it first when it is not
// stored locally. A missing body with no remote connected fails before any
// network access.
func (s *Syncer) EnsureBody(ctx context.Context, book models.Book, onUpdate progress.Update) ([]byte, error) {
	name := book.BodyName()
	ok, err := s.lib.Store().Exists(book.File(name))
	if err != nil {
		return nil, err
	}
	if ok {
		return s.lib.Store().Read(book.File(name))
	}
	if !s.Connected() {
		return nil, apperr.Precondition("book %q is not downloaded and no remote is connected", book.Name)
	}
	data, err := s.Ensure(ctx, book, name, onUpdate)
	if err != nil {
		return nil, fmt.Errorf("download book %q: %w", book.Name, err)
	}
	if data == nil {
		// Written by a concurrent download between the checks above.
		return s.lib.Store().Read(book.File(name))
	}
	return data, nil
}

// Content is everything needed to open a book.
type Content struct {
	Book   models.Book
	Body   []byte
	Config *models.BookConfig
	Pages  []string
}

// LoadBook makes the body available, syncs the config and reads cached page
// locations. A failed config sync falls back to the local config.
func (s *Syncer) LoadBook(ctx context.Context, book models.Book, onUpdate progress.Update) (*Content, error) {
	body, err := s.EnsureBody(ctx, book, onUpdate)
	if err != nil {
		return nil, err
	}
	cfg, err := s.SyncBook(ctx, book, nil)
	if err != nil {
		s.logger.Warn("syncer: config sync failed", slog.String("hash", book.Hash), slog.Any("error", err))
		s.sink.Notify(notify.Warning, fmt.Sprintf("could not sync %q: %v", book.Name, err))
		if cfg, err = s.LoadConfig(book); err != nil {
			return nil, err
		}
	}
	pages, err := s.lib.LoadPages(book)
	if err != nil {
		return nil, err
	}
	return &Content{Book: book, Body: body, Config: cfg, Pages: pages}, nil
}

// SavePages caches generated page locations for book.
func (s *Syncer) SavePages(book models.Book, pages []string) error {
	return s.lib.SavePages(book, pages)
}

// LoadConfig reads book's local config under its lock.
func (s *Syncer) LoadConfig(book models.Book) (*models.BookConfig, error) {
	unlock := s.books.Lock(book.Hash)
	defer unlock()
	return s.lib.LoadConfig(book)
}

// SaveConfig writes book's local config under its lock.
func (s *Syncer) SaveConfig(book models.Book, cfg *models.BookConfig) error {
	unlock := s.books.Lock(book.Hash)
	defer unlock()
	return s.lib.SaveConfig(book, cfg)
}

// UpdateConfig loads book's local config, applies fn and saves the result,
// all under the book's lock.
func (s *Syncer) UpdateConfig(book models.Book, fn func(*models.BookConfig) error) (*models.BookConfig, error) {
	unlock := s.books.Lock(book.Hash)
	defer unlock()
	cfg, err := s.lib.LoadConfig(book)
	if err != nil {
		return nil, err
	}
	if err := fn(cfg); err != nil {
		return nil, err
	}
	if err := s.lib.SaveConfig(book, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
