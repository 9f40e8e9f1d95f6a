// Package remote talks to the remote copy of a library. Paths are
// slash-separated and relative to the remote root prefix.
package remote

import (
	"context"

	"github.com/starford/lectern/internal/models"
	"github.com/starford/lectern/internal/progress"
)

// DefaultRoot is the top-level remote directory holding the library.
const DefaultRoot = "Awaken"

// Client is the capability the synchronizer needs from a remote store.
type Client interface {
	Exists(ctx context.Context, path string) (bool, error)
	// Read downloads path, reporting byte counters to fn when non-nil.
	Read(ctx context.Context, path string, fn progress.Func) ([]byte, error)
	// Write uploads data. With overwrite false an existing file is kept and
	// apperr.ErrAlreadyExists returned.
	Write(ctx context.Context, path string, data []byte, overwrite bool, fn progress.Func) error
	ReadDir(ctx context.Context, dir string) ([]models.FileInfo, error)
	Mkdir(ctx context.Context, dir string) error
	Delete(ctx context.Context, path string) error
}
