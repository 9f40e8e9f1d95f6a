package index

// HighlightIndex defines the interface for highlight indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type HighlightIndex interface {
	UpsertBook(b BookRow) error
	ReplaceNotes(hash string, notes []NoteRow) error
	DeleteBook(hash string) error
	BookHashes() (map[string]struct{}, error)
	Notes(hash string) ([]NoteRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	GetChecksum(path string) (string, error)
	SetChecksum(path, checksum string) error
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies HighlightIndex at compile time.
var _ HighlightIndex = (*DB)(nil)
