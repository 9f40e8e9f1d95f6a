// Package annotations imports highlights exported from other readers into
// a book's reading state.
package annotations

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/starford/lectern/internal/apperr"
	"github.com/starford/lectern/internal/epub"
	"github.com/starford/lectern/internal/merge"
	"github.com/starford/lectern/internal/models"
	"github.com/starford/lectern/internal/notify"
	"github.com/starford/lectern/internal/parser"
	"github.com/starford/lectern/internal/progress"
	"github.com/starford/lectern/internal/syncer"
)

// LookupFailure is an exported highlight whose text was not found in the
// book. It is returned for the user to place by hand.
type LookupFailure struct {
	Heading    string `json:"heading"`
	Text       string `json:"text"`
	Annotation string `json:"annotation,omitempty"`
}

func (f LookupFailure) String() string {
	s := fmt.Sprintf("%s highlight: %s", f.Heading, f.Text)
	if f.Annotation != "" {
		s += " note: " + f.Annotation
	}
	return s
}

// Importer turns Kindle notebook exports into notes.
type Importer struct {
	sync      *syncer.Syncer
	sink      notify.Sink
	logger    *slog.Logger
	pageChars int
}

// NewImporter creates an Importer. pageChars is the page-location
// granularity used when a book's pages.json must be generated.
func NewImporter(s *syncer.Syncer, sink notify.Sink, logger *slog.Logger, pageChars int) *Importer {
	if pageChars <= 0 {
		pageChars = epub.DefaultPageChars
	}
	return &Importer{sync: s, sink: sink, logger: logger, pageChars: pageChars}
}

// Import reads a Kindle export for book. Located highlights are merged into
// the book's notes and the config is synced when a remote is connected;
// highlights that could not be located are returned. The export's title
// must match the book name and is checked before anything else is touched.
func (im *Importer) Import(ctx context.Context, book models.Book, export io.Reader, onUpdate progress.Update) ([]LookupFailure, error) {
	exp, err := parser.ParseKindle(export)
	if err != nil {
		return nil, err
	}
	if exp.Title != book.Name {
		return nil, apperr.Precondition("notes are for %q, not %q", exp.Title, book.Name)
	}

	body, err := im.sync.EnsureBody(ctx, book, onUpdate)
	if err != nil {
		return nil, err
	}
	doc, err := epub.Open(body)
	if err != nil {
		return nil, apperr.Precondition("cannot parse book %q: %v", book.Name, err)
	}
	pages, err := im.locations(book, doc, onUpdate)
	if err != nil {
		return nil, err
	}

	now := im.sync.Library().Now()
	var (
		found  []models.Note
		failed []LookupFailure
		cur    epub.Cursor
	)
	for _, e := range exp.Entries {
		m, ok, err := doc.Search(e.Text, cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			failed = append(failed, LookupFailure{Heading: e.Heading, Text: e.Text, Annotation: e.Annotation})
			continue
		}
		cur = m.Next
		found = append(found, models.Note{
			CFI:        m.CFI,
			Start:      m.Start,
			End:        m.End,
			Page:       epub.PageOf(pages, m.Start),
			Text:       e.Text,
			Annotation: e.Annotation,
			Modified:   now,
		})
	}
	im.logger.Info("annotations: import located",
		slog.String("hash", book.Hash),
		slog.Int("found", len(found)),
		slog.Int("failed", len(failed)))

	merge.Sort(found)
	if _, err := im.sync.UpdateConfig(book, func(cfg *models.BookConfig) error {
		// Import never deletes, so the tombstone map starts empty.
		cfg.Notes = merge.Notes(cfg.Notes, found, models.Tombstones{})
		return nil
	}); err != nil {
		return nil, err
	}

	if !im.sync.Connected() {
		im.sink.Notify(notify.Warning, "remote not connected, imported notes are stored on this device only")
		return failed, nil
	}
	// Reload under the book lock so a config saved since UpdateConfig is kept.
	if _, err := im.sync.SyncBook(ctx, book, nil); err != nil {
		im.logger.Error("annotations: sync after import failed", slog.String("hash", book.Hash), slog.Any("error", err))
		im.sink.Notify(notify.Error, fmt.Sprintf("imported notes saved locally but sync failed: %v", err))
	}
	return failed, nil
}

// locations loads the cached page index or generates and caches it.
func (im *Importer) locations(book models.Book, doc *epub.Book, onUpdate progress.Update) ([]string, error) {
	lib := im.sync.Library()
	pages, err := lib.LoadPages(book)
	if err != nil || pages != nil {
		return pages, err
	}
	if onUpdate != nil {
		onUpdate("generating page locations")
	}
	pages, err = doc.Locations(im.pageChars)
	if err != nil {
		return nil, err
	}
	if err := lib.SavePages(book, pages); err != nil {
		return nil, err
	}
	return pages, nil
}
