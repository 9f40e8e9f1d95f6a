package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/lectern/internal/models"
	"github.com/starford/lectern/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "updated", "deleted", "library"; path is library-relative.
type EventCallback func(kind string, path string)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the library root and every book
// directory, and reindexes until ctx is cancelled. A changed config.json
// reindexes that book; a changed books.json (or a removed book directory)
// schedules a debounced full Sync. cb, if non-nil, runs after each
// successful index mutation.
func Watch(ctx context.Context, db *DB, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addBookDirs(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			if err := Sync(db, store, logger); err != nil {
				logger.Warn("watcher: library sync failed", slog.String("error", err.Error()))
				continue
			}
			if cb != nil {
				cb("library", models.ManifestFile)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			// New book directories join the watch list; their config
			// arrives as its own event or through the manifest.
			if ev.Op&fsnotify.Create != 0 && !strings.Contains(rel, "/") {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := w.Add(ev.Name); addErr != nil {
						logger.Warn("watcher: add book dir failed",
							slog.String("path", rel),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching book dir", slog.String("path", rel))
					}
					reindexBook(db, store, rel, logger, cb)
					continue
				}
			}

			switch {
			case rel == models.ManifestFile:
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
					scheduleReconcile()
				}

			case isConfigPath(rel):
				hash := strings.SplitN(rel, "/", 2)[0]
				if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					reindexBook(db, store, hash, logger, cb)
				} else if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					scheduleReconcile()
				}

			case !strings.Contains(rel, "/") && ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// A book directory went away.
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reindexBook refreshes one book's notes if the book is already known to
// the index. Unknown books wait for the manifest.
func reindexBook(db *DB, store storage.Provider, hash string, logger *slog.Logger, cb EventCallback) {
	known, err := db.BookHashes()
	if err != nil {
		logger.Warn("watcher: book hashes failed", slog.String("error", err.Error()))
		return
	}
	if _, ok := known[hash]; !ok {
		return
	}
	changed, err := indexConfig(db, store, hash, false)
	if err != nil {
		logger.Warn("watcher: index failed", slog.String("hash", hash), slog.String("error", err.Error()))
		return
	}
	if !changed {
		return
	}
	logger.Debug("watcher: indexed", slog.String("hash", hash))
	if cb != nil {
		cb("updated", hash+"/"+models.ConfigFile)
	}
}

func isConfigPath(rel string) bool {
	dir, file, ok := strings.Cut(rel, "/")
	return ok && dir != "" && file == models.ConfigFile
}

// addBookDirs adds root and its direct subdirectories to the watcher.
// Book directories are never nested.
func addBookDirs(w *fsnotify.Watcher, root string) error {
	if err := w.Add(root); err != nil {
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.Add(filepath.Join(root, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}
