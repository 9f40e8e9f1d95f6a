// Package models defines the domain types for Lectern.
package models

import (
	"path"
	"time"
)

// Well-known file names inside a library.
const (
	ManifestFile = "books.json"
	ConfigFile   = "config.json"
	CoverFile    = "cover.png"
	PagesFile    = "pages.json"
)

// BookType tags the format of a book body.
type BookType string

const BookTypeEPUB BookType = "EPUB"

// Book is one manifest row. Hash is the md5 of the book body and never changes.
type Book struct {
	Hash    string   `json:"hash"`
	Type    BookType `json:"type"`
	Name    string   `json:"name"`
	Author  string   `json:"author"`
	TS      int64    `json:"ts"`
	Removed bool     `json:"removed,omitempty"`
	Cover   string   `json:"cover,omitempty"`
}

// Dir is the per-book directory, relative to the library root.
func (b Book) Dir() string { return b.Hash }

// BodyName is the file name of the book body.
func (b Book) BodyName() string { return b.Name + ".epub" }

// File joins name onto the book directory.
func (b Book) File(name string) string { return path.Join(b.Hash, name) }

// Bookshelf assigns a book to a named shelf. A nil Value is the default shelf.
type Bookshelf struct {
	Value *string `json:"value"`
	TS    int64   `json:"ts"`
}

// Name returns the shelf name, or "" for the default shelf.
func (s *Bookshelf) Name() string {
	if s == nil || s.Value == nil {
		return ""
	}
	return *s.Value
}

// BookConfig is the per-book reading state stored in <hash>/config.json.
type BookConfig struct {
	TS           int64      `json:"ts,omitempty"`
	LastProgress float64    `json:"lastProgress,omitempty"`
	Progress     float64    `json:"progress"`
	Bookmarks    []Note     `json:"bookmarks"`
	Notes        []Note     `json:"notes"`
	RemovedTS    Tombstones `json:"removedTs,omitempty"`
	Bookshelf    *Bookshelf `json:"bookshelf,omitempty"`
}

// NewBookConfig returns the document written for a freshly added book.
func NewBookConfig() *BookConfig {
	return &BookConfig{Notes: []Note{}, Bookmarks: []Note{}}
}

// FileInfo describes an entry returned by directory listings.
type FileInfo struct {
	Path      string    `json:"path"`
	IsDir     bool      `json:"is_dir"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Now returns the current time in Unix milliseconds, the unit of every
// timestamp in the persisted documents.
func Now() int64 { return time.Now().UnixMilli() }
