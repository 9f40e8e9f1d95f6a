package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/starford/lectern/internal/library"
	"github.com/starford/lectern/internal/merge"
	"github.com/starford/lectern/internal/models"
	"github.com/starford/lectern/internal/notify"
	"github.com/starford/lectern/internal/remote"
)

const offlineNotice = "remote not connected, reading state is kept on this device only"

// SyncBook merges book's local config with the remote one, stores the result
// on both sides and returns it. cfg, when not nil, is used instead of the
// stored local config and must not be used by the caller afterwards.
// Without a remote the local config is returned unchanged.
func (s *Syncer) SyncBook(ctx context.Context, book models.Book, cfg *models.BookConfig) (*models.BookConfig, error) {
	unlock := s.books.Lock(book.Hash)
	defer unlock()

	if cfg == nil {
		var err error
		if cfg, err = s.lib.LoadConfig(book); err != nil {
			return nil, err
		}
	}
	rc := s.Remote()
	if rc == nil {
		s.offline.Notify("offline", notify.Info, offlineNotice)
		return cfg, nil
	}

	remoteCfg, found, err := readRemoteConfig(ctx, rc, book)
	if err != nil {
		return nil, err
	}
	var merged *models.BookConfig
	if found {
		merged = merge.Config(cfg, remoteCfg, s.lib.Now())
	} else {
		merged = merge.Local(cfg, s.lib.Now())
	}
	if err := s.lib.SaveConfig(book, merged); err != nil {
		return nil, err
	}
	if err := writeRemoteConfig(ctx, rc, book, merged); err != nil {
		return merged, err
	}
	return merged, nil
}

// SyncBookshelf reconciles only the bookshelf assignment: the side with the
// strictly newer timestamp overwrites the other. A book without a remote
// config is left alone. It returns the resolved shelf name, or nil for the
// default shelf.
func (s *Syncer) SyncBookshelf(ctx context.Context, book models.Book, cfg *models.BookConfig) (*string, error) {
	unlock := s.books.Lock(book.Hash)
	defer unlock()

	if cfg == nil {
		var err error
		if cfg, err = s.lib.LoadConfig(book); err != nil {
			return nil, err
		}
	}
	rc := s.Remote()
	if rc == nil {
		return shelfValue(cfg.Bookshelf), nil
	}
	remoteCfg, found, err := readRemoteConfig(ctx, rc, book)
	if err != nil {
		return nil, err
	}
	if !found {
		// The first SyncBook uploads the whole document, shelf included.
		return shelfValue(cfg.Bookshelf), nil
	}

	lts, rts := shelfTS(cfg.Bookshelf), shelfTS(remoteCfg.Bookshelf)
	switch {
	case lts > rts:
		remoteCfg.Bookshelf = cfg.Bookshelf
		if err := writeRemoteConfig(ctx, rc, book, remoteCfg); err != nil {
			return nil, err
		}
	case rts > lts:
		cfg.Bookshelf = remoteCfg.Bookshelf
		if err := s.lib.SaveConfig(book, cfg); err != nil {
			return nil, err
		}
	}
	return shelfValue(cfg.Bookshelf), nil
}

func shelfTS(b *models.Bookshelf) int64 {
	if b == nil {
		return 0
	}
	return b.TS
}

func shelfValue(b *models.Bookshelf) *string {
	if b == nil {
		return nil
	}
	return b.Value
}

// readRemoteConfig fetches book's remote config. A book that has none yet
// gets an empty document and found is false.
func readRemoteConfig(ctx context.Context, rc remote.Client, book models.Book) (cfg *models.BookConfig, found bool, err error) {
	data, err := rc.Read(ctx, book.File(models.ConfigFile), nil)
	if isNotFound(err) {
		return models.NewBookConfig(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("syncer: read remote config: %w", err)
	}
	cfg, err = library.DecodeConfig(data)
	return cfg, err == nil, err
}

func writeRemoteConfig(ctx context.Context, rc remote.Client, book models.Book, cfg *models.BookConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("syncer: encode config: %w", err)
	}
	if err := rc.Write(ctx, book.File(models.ConfigFile), data, true, nil); err != nil {
		return fmt.Errorf("syncer: push config: %w", err)
	}
	return nil
}
