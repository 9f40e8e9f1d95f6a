package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/lectern/internal/apperr"
	"github.com/starford/lectern/internal/library"
	"github.com/starford/lectern/internal/models"
	"github.com/starford/lectern/internal/notify"
	"github.com/starford/lectern/internal/progress"
	"github.com/starford/lectern/internal/remote"
)

// Report summarizes a library run.
type Report struct {
	Pulled  int `json:"pulled"`
	Pushed  int `json:"pushed"`
	Removed int `json:"removed"`
	// PushErr is set when the push phase failed; it wraps
	// apperr.ErrPartialSync. The pull phase has been applied regardless.
	PushErr error `json:"-"`
}

// SyncBooks runs one library synchronization. Concurrent calls share the
// run already in flight.
func (s *Syncer) SyncBooks(ctx context.Context, onUpdate progress.Update) (Report, error) {
	v, err, _ := s.flight.Do("library", func() (any, error) {
		return s.syncBooks(ctx, onUpdate)
	})
	if err != nil {
		return Report{}, err
	}
	return v.(Report), nil
}

func (s *Syncer) syncBooks(ctx context.Context, onUpdate progress.Update) (Report, error) {
	var rep Report
	rc := s.Remote()
	if rc == nil {
		s.sink.Notify(notify.Warning, "remote not connected, library not synced")
		return rep, apperr.ErrNotConnected
	}

	data, err := rc.Read(ctx, models.ManifestFile, nil)
	if err != nil {
		return rep, fmt.Errorf("syncer: read remote manifest: %w", err)
	}
	remoteBooks, err := library.DecodeManifest(data)
	if err != nil {
		return rep, err
	}
	localBooks := s.lib.Books()
	localIdx := index(localBooks)
	remoteIdx := index(remoteBooks)

	var pulls, pushes []models.Book
	for _, rb := range remoteBooks {
		lb, ok := localIdx[rb.Hash]
		if (ok && rb.TS > lb.TS) || (!ok && !rb.Removed) {
			pulls = append(pulls, rb)
		}
	}
	for _, lb := range localBooks {
		rb, ok := remoteIdx[lb.Hash]
		if (ok && lb.TS > rb.TS) || (!ok && !lb.Removed) {
			pushes = append(pushes, lb)
		}
	}
	s.logger.Info("syncer: library diff", slog.Int("pull", len(pulls)), slog.Int("push", len(pushes)))

	// Reverse so new rows end up in remote order after front inserts.
	for i := len(pulls) - 1; i >= 0; i-- {
		rb := pulls[i]
		_, existed := localIdx[rb.Hash]
		if rb.Removed {
			if err := s.pullRemoval(rb); err != nil {
				return rep, err
			}
			rep.Removed++
			continue
		}
		if err := s.pullBook(ctx, rc, rb, existed, onUpdate); err != nil {
			return rep, err
		}
		rep.Pulled++
	}
	if err := s.lib.Save(); err != nil {
		return rep, err
	}

	if err := s.push(ctx, rc, pushes, remoteBooks, onUpdate); err != nil {
		rep.PushErr = apperr.PartialSync(err)
	} else {
		rep.Pushed = len(pushes)
	}

	// Books edited on both sides need their reading state merged.
	var shared []models.Book
	for _, b := range append(pulls, pushes...) {
		_, inLocal := localIdx[b.Hash]
		_, inRemote := remoteIdx[b.Hash]
		if inLocal && inRemote && !b.Removed {
			shared = append(shared, b)
		}
	}
	for _, b := range shared {
		cur, ok := s.lib.Get(b.Hash)
		if !ok || cur.Removed {
			continue
		}
		if _, err := s.SyncBook(ctx, cur, nil); err != nil && rep.PushErr == nil {
			rep.PushErr = apperr.PartialSync(err)
		}
	}

	if rep.PushErr != nil {
		s.logger.Warn("syncer: push phase failed", slog.Any("error", rep.PushErr))
		s.sink.Notify(notify.Warning, rep.PushErr.Error())
	}
	return rep, nil
}

func index(books []models.Book) map[string]models.Book {
	m := make(map[string]models.Book, len(books))
	for _, b := range books {
		m[b.Hash] = b
	}
	return m
}

// pullRemoval applies a remote tombstone to the local row.
func (s *Syncer) pullRemoval(rb models.Book) error {
	lb, ok := s.lib.Get(rb.Hash)
	if !ok {
		return nil
	}
	if err := s.lib.DeleteFiles(lb); err != nil {
		return err
	}
	return s.lib.Update(rb.Hash, func(b *models.Book) {
		b.Removed = true
		b.TS = rb.TS
		b.Cover = ""
	})
}

// pullBook fetches every per-book file except the body and records the row.
func (s *Syncer) pullBook(ctx context.Context, rc remote.Client, rb models.Book, existed bool, onUpdate progress.Update) error {
	if err := s.lib.Store().Mkdir(rb.Dir()); err != nil {
		return err
	}
	entries, err := rc.ReadDir(ctx, rb.Dir())
	if err != nil && !isNotFound(err) {
		return err
	}
	for _, e := range entries {
		name := path.Base(e.Path)
		if e.IsDir || strings.HasSuffix(name, ".epub") {
			continue
		}
		if _, err := s.fetch(ctx, rc, rb, name, onUpdate); err != nil {
			return err
		}
	}

	filled := s.lib.FillCover(rb)
	if existed {
		return s.lib.Update(rb.Hash, func(b *models.Book) {
			b.TS = rb.TS
			b.Removed = false
			b.Cover = filled.Cover
		})
	}
	s.lib.Insert(filled)
	return nil
}

// push uploads locally newer books and then the manifest.
func (s *Syncer) push(ctx context.Context, rc remote.Client, pushes, remoteBooks []models.Book, onUpdate progress.Update) error {
	store := s.lib.Store()
	for _, lb := range pushes {
		if lb.Removed {
			if err := rc.Delete(ctx, lb.File(lb.BodyName())); err != nil && !isNotFound(err) {
				return err
			}
			continue
		}
		if ok, err := rc.Exists(ctx, lb.Dir()); err != nil {
			return err
		} else if !ok {
			if err := rc.Mkdir(ctx, lb.Dir()); err != nil {
				return err
			}
		}
		for _, name := range []string{lb.BodyName(), models.CoverFile, models.ConfigFile} {
			ok, err := store.Exists(lb.File(name))
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			data, err := store.Read(lb.File(name))
			if err != nil {
				return err
			}
			// An existing remote config is merged by SyncBook, never replaced.
			overwrite := name != models.ConfigFile
			err = rc.Write(ctx, lb.File(name), data, overwrite, progress.ForFile(name, onUpdate))
			if err != nil && !errors.Is(err, apperr.ErrAlreadyExists) {
				return err
			}
		}
	}

	if err := s.lib.Save(); err != nil {
		return err
	}
	manifest := s.lib.Books()
	known := index(manifest)
	for _, rb := range remoteBooks {
		// Keep remote rows this replica never had, tombstones included, so
		// other replicas still see them.
		if _, ok := known[rb.Hash]; !ok {
			manifest = append(manifest, rb)
		}
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("syncer: encode manifest: %w", err)
	}
	return rc.Write(ctx, models.ManifestFile, data, true, progress.ForFile(models.ManifestFile, onUpdate))
}
