// Package storage defines the library file-system abstraction.
package storage

import "github.com/starford/lectern/internal/models"

// Provider is the interface for library file operations. All paths are
// slash-separated and relative to the library root.
type Provider interface {
	// Exists reports whether a file or directory is present at path.
	Exists(path string) (bool, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path. With overwrite false an
	// existing file is left untouched and apperr.ErrAlreadyExists returned.
	Write(path string, content []byte, overwrite bool) error
	// Mkdir creates dir and any missing parents.
	Mkdir(dir string) error
	// ReadDir lists dir down to depth levels (1 = direct children).
	ReadDir(dir string, depth int) ([]models.FileInfo, error)
	// Delete removes the file or empty directory at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
