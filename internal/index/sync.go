package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/starford/lectern/internal/apperr"
	"github.com/starford/lectern/internal/checksum"
	"github.com/starford/lectern/internal/models"
	"github.com/starford/lectern/internal/storage"
)

// Sync reads the library manifest and brings the index up to date:
//   - live books are upserted and their changed configs reindexed
//   - removed or vanished books are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	data, err := store.Read(models.ManifestFile)
	if errors.Is(err, apperr.ErrNotFound) {
		data = []byte("[]")
	} else if err != nil {
		return err
	}
	var books []models.Book
	if err := json.Unmarshal(data, &books); err != nil {
		return fmt.Errorf("index: decode manifest: %w", err)
	}

	indexed, err := db.BookHashes()
	if err != nil {
		return err
	}

	live := make(map[string]struct{}, len(books))
	for _, b := range books {
		if b.Removed {
			continue
		}
		live[b.Hash] = struct{}{}
		if err := db.UpsertBook(BookRow{Hash: b.Hash, Name: b.Name, Author: b.Author, TS: b.TS}); err != nil {
			logger.Warn("sync: upsert book failed", slog.String("hash", b.Hash), slog.String("error", err.Error()))
			continue
		}
		_, known := indexed[b.Hash]
		changed, err := indexConfig(db, store, b.Hash, !known)
		if err != nil {
			logger.Warn("sync: index failed", slog.String("hash", b.Hash), slog.String("error", err.Error()))
		} else if changed {
			logger.Debug("sync: indexed", slog.String("hash", b.Hash))
		}
	}

	// Remove stale entries.
	for h := range indexed {
		if _, ok := live[h]; ok {
			continue
		}
		if err := db.DeleteBook(h); err != nil {
			logger.Warn("sync: delete failed", slog.String("hash", h), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("hash", h))
		}
	}

	return db.SetChecksum(models.ManifestFile, checksum.Sum(data))
}

// indexConfig reindexes the live notes of one book from its config.json.
// With force false an unchanged checksum skips the work. It reports whether
// the index changed.
func indexConfig(db *DB, store storage.Provider, hash string, force bool) (bool, error) {
	p := path.Join(hash, models.ConfigFile)
	data, err := store.Read(p)
	if errors.Is(err, apperr.ErrNotFound) {
		return true, db.ReplaceNotes(hash, nil)
	}
	if err != nil {
		return false, err
	}
	cs := checksum.Sum(data)
	if !force {
		if old, _ := db.GetChecksum(p); old == cs {
			return false, nil
		}
	}

	var cfg models.BookConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return false, fmt.Errorf("index: decode %s: %w", p, err)
	}
	rows := make([]NoteRow, 0, len(cfg.Notes))
	for _, n := range cfg.Notes {
		if n.Removed != 0 {
			continue
		}
		rows = append(rows, NoteRow{
			Hash:       hash,
			CFI:        n.CFI,
			Page:       n.Page,
			Text:       n.Text,
			Annotation: n.Annotation,
			Modified:   n.Modified,
		})
	}
	if err := db.ReplaceNotes(hash, rows); err != nil {
		return false, err
	}
	return true, db.SetChecksum(p, cs)
}
