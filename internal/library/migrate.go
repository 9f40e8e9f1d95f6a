package library

import (
	"fmt"
	"log/slog"

	"github.com/starford/lectern/internal/storage"
)

// Migrate copies a library folder into dst: the manifest and every file in
// each per-book directory. Existing files in dst are overwritten.
func Migrate(src, dst storage.Provider, logger *slog.Logger) (int, error) {
	entries, err := src.ReadDir("", 2)
	if err != nil {
		return 0, fmt.Errorf("library: migrate: %w", err)
	}
	copied := 0
	for _, e := range entries {
		if e.IsDir {
			if err := dst.Mkdir(e.Path); err != nil {
				return copied, err
			}
			continue
		}
		data, err := src.Read(e.Path)
		if err != nil {
			return copied, err
		}
		if err := dst.Write(e.Path, data, true); err != nil {
			return copied, err
		}
		copied++
	}
	logger.Info("library: migrated", slog.Int("files", copied))
	return copied, nil
}
