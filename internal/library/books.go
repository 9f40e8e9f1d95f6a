package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/lectern/internal/apperr"
	"github.com/starford/lectern/internal/checksum"
	"github.com/starford/lectern/internal/epub"
	"github.com/starford/lectern/internal/merge"
	"github.com/starford/lectern/internal/models"
)

// Add imports an EPUB body. The book is identified by the md5 of content:
// re-adding a removed book revives its row, while content differing in a
// single byte is a different book.
func (l *Library) Add(content []byte) (models.Book, error) {
	doc, err := epub.Open(content)
	if err != nil {
		return models.Book{}, apperr.Precondition("cannot parse book: %v", err)
	}
	hash := checksum.BookHash(content)
	cover, err := doc.Cover()
	if err != nil && !errors.Is(err, epub.ErrNoCover) {
		l.logger.Warn("library: read cover failed", slog.String("hash", hash), slog.Any("error", err))
	}

	existing, found := l.Get(hash)
	if found && !existing.Removed {
		return models.Book{}, apperr.Precondition("book %q: %v", existing.Name, apperr.ErrAlreadyExists)
	}

	book := existing
	if !found {
		book = models.Book{
			Hash:   hash,
			Type:   models.BookTypeEPUB,
			Name:   doc.Title,
			Author: doc.Author,
		}
		if book.Name == "" {
			book.Name = hash
		}
		if err := l.store.Mkdir(book.Dir()); err != nil {
			return models.Book{}, err
		}
		if err := l.SaveConfig(book, models.NewBookConfig()); err != nil {
			return models.Book{}, err
		}
	}
	if err := l.store.Write(book.File(book.BodyName()), content, true); err != nil {
		return models.Book{}, err
	}
	if len(cover) > 0 {
		if err := l.store.Write(book.File(models.CoverFile), cover, true); err != nil {
			return models.Book{}, err
		}
	}

	book.Removed = false
	book.TS = l.now()
	book = l.FillCover(book)
	if found {
		if err := l.Update(hash, func(b *models.Book) { *b = book }); err != nil {
			return models.Book{}, err
		}
	} else {
		l.Insert(book)
	}
	l.logger.Info("library: book added", slog.String("hash", hash), slog.String("name", book.Name))
	return book, l.Save()
}

// Remove deletes the body and cover and leaves a tombstone row stamped now.
func (l *Library) Remove(hash string) (models.Book, error) {
	book, ok := l.Get(hash)
	if !ok {
		return models.Book{}, fmt.Errorf("library: book %s: %w", hash, apperr.ErrNotFound)
	}
	if err := l.DeleteFiles(book); err != nil {
		return models.Book{}, err
	}
	ts := l.now()
	if err := l.Update(hash, func(b *models.Book) {
		b.Removed = true
		b.TS = ts
		b.Cover = ""
	}); err != nil {
		return models.Book{}, err
	}
	book, _ = l.Get(hash)
	return book, l.Save()
}

// DeleteFiles removes the body and cover of book when present. The
// directory and config stay so reading state survives a later re-add.
func (l *Library) DeleteFiles(book models.Book) error {
	for _, name := range []string{book.BodyName(), models.CoverFile} {
		err := l.store.Delete(book.File(name))
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
	}
	return nil
}

// FillCover points book.Cover at the local cover file, or clears it.
func (l *Library) FillCover(book models.Book) models.Book {
	ok, err := l.store.Exists(book.File(models.CoverFile))
	if err == nil && ok {
		book.Cover = book.File(models.CoverFile)
	} else {
		book.Cover = ""
	}
	return book
}

// LoadConfig reads <hash>/config.json. A book without one gets a fresh
// empty config.
func (l *Library) LoadConfig(book models.Book) (*models.BookConfig, error) {
	data, err := l.store.Read(book.File(models.ConfigFile))
	if errors.Is(err, apperr.ErrNotFound) {
		return models.NewBookConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	return DecodeConfig(data)
}

// DecodeConfig parses a config.json document, normalising nil lists and
// ordering notes and bookmarks by start locator.
func DecodeConfig(data []byte) (*models.BookConfig, error) {
	cfg := models.NewBookConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("library: decode config: %w", err)
	}
	if cfg.Notes == nil {
		cfg.Notes = []models.Note{}
	}
	if cfg.Bookmarks == nil {
		cfg.Bookmarks = []models.Note{}
	}
	merge.Sort(cfg.Notes)
	merge.Sort(cfg.Bookmarks)
	return cfg, nil
}

// SaveConfig writes <hash>/config.json. Notes and bookmarks of cfg are sorted
// by start locator in place.
func (l *Library) SaveConfig(book models.Book, cfg *models.BookConfig) error {
	merge.Sort(cfg.Notes)
	merge.Sort(cfg.Bookmarks)
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("library: encode config: %w", err)
	}
	return l.store.Write(book.File(models.ConfigFile), data, true)
}

// LoadPages reads the cached page locations; nil when not generated yet.
func (l *Library) LoadPages(book models.Book) ([]string, error) {
	data, err := l.store.Read(book.File(models.PagesFile))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var pages []string
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("library: decode pages: %w", err)
	}
	return pages, nil
}

// SavePages caches page locations in <hash>/pages.json.
func (l *Library) SavePages(book models.Book, pages []string) error {
	data, err := json.Marshal(pages)
	if err != nil {
		return fmt.Errorf("library: encode pages: %w", err)
	}
	return l.store.Write(book.File(models.PagesFile), data, true)
}
