package api

import (
	"github.com/starford/lectern/internal/annotations"
	"github.com/starford/lectern/internal/bookservice"
	"github.com/starford/lectern/internal/index"
	"github.com/starford/lectern/internal/models"
)

// BookListItem is a book row in list responses (aliased from the domain layer).
type BookListItem = bookservice.BookListItem

// BookListResponse wraps the library listing.
type BookListResponse struct {
	Books []BookListItem `json:"books" validate:"required"`
}

// BookConfig is a book's reading state (aliased from the domain layer).
type BookConfig = models.BookConfig

// BookshelfResponse is the resolved shelf after a bookshelf sync. A null
// bookshelf is the default shelf.
type BookshelfResponse struct {
	Bookshelf *string `json:"bookshelf"`
}

// ImportResponse lists the highlights that could not be located.
type ImportResponse struct {
	Failures []annotations.LookupFailure `json:"failures" validate:"required"`
}

// SyncResponse summarizes a library sync. Warning is set when the push
// phase failed and the sync should be run again.
type SyncResponse struct {
	Pulled  int    `json:"pulled" example:"2"`
	Pushed  int    `json:"pushed" example:"1"`
	Removed int    `json:"removed" example:"0"`
	Warning string `json:"warning,omitempty"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}
