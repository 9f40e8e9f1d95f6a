package index

import (
	"fmt"
)

// BookRow represents a row in the books table.
type BookRow struct {
	Hash   string
	Name   string
	Author string
	TS     int64
}

// NoteRow represents one live highlight of a book.
type NoteRow struct {
	Hash       string
	CFI        string
	Page       int
	Text       string
	Annotation string
	Modified   int64
}

// SearchResult represents one search hit.
type SearchResult struct {
	Hash       string `json:"hash"`
	Book       string `json:"book"`
	CFI        string `json:"cfi"`
	Page       int    `json:"page"`
	Text       string `json:"text"`
	Annotation string `json:"annotation,omitempty"`
	Snippet    string `json:"snippet"`
}

// UpsertBook inserts or updates a book row.
func (db *DB) UpsertBook(b BookRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO books (hash, name, author, ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			name   = excluded.name,
			author = excluded.author,
			ts     = excluded.ts
	`, b.Hash, b.Name, b.Author, b.TS)
	if err != nil {
		return fmt.Errorf("index: upsert book: %w", err)
	}
	return nil
}

// ReplaceNotes swaps the indexed notes of a book, and their FTS entries,
// within a transaction.
func (db *DB) ReplaceNotes(hash string, notes []NoteRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var book string
	_ = tx.QueryRow(`SELECT name FROM books WHERE hash = ?`, hash).Scan(&book)

	ftsDelete(tx, hash)
	if _, err := tx.Exec(`DELETE FROM notes WHERE hash = ?`, hash); err != nil {
		return fmt.Errorf("index: clear notes: %w", err)
	}
	if len(notes) > 0 {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO notes (hash, cfi, page, text, annotation, modified)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare note insert: %w", err)
		}
		defer stmt.Close()
		for _, n := range notes {
			if _, err := stmt.Exec(hash, n.CFI, n.Page, n.Text, n.Annotation, n.Modified); err != nil {
				return fmt.Errorf("index: insert note: %w", err)
			}
			if err := ftsUpsert(tx, hash, n.CFI, book, n.Text, n.Annotation); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// DeleteBook removes a book, its notes and their FTS entries.
func (db *DB) DeleteBook(hash string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, hash)
	_, _ = tx.Exec(`DELETE FROM notes WHERE hash = ?`, hash)
	_, _ = tx.Exec(`DELETE FROM books WHERE hash = ?`, hash)
	_, _ = tx.Exec(`DELETE FROM sources WHERE path LIKE ? || '/%'`, hash)

	return tx.Commit()
}

// BookHashes returns every indexed book hash.
func (db *DB) BookHashes() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT hash FROM books`)
	if err != nil {
		return nil, fmt.Errorf("index: book hashes: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out[h] = struct{}{}
	}
	return out, rows.Err()
}

// Notes returns the indexed notes of a book in page order.
func (db *DB) Notes(hash string) ([]NoteRow, error) {
	rows, err := db.conn.Query(`
		SELECT hash, cfi, page, text, annotation, modified
		FROM notes WHERE hash = ?
		ORDER BY page, cfi`, hash)
	if err != nil {
		return nil, fmt.Errorf("index: notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		var n NoteRow
		if err := rows.Scan(&n.Hash, &n.CFI, &n.Page, &n.Text, &n.Annotation, &n.Modified); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetChecksum returns the stored checksum for a library file, or empty
// string if it was never indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM sources WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// SetChecksum records the checksum a library file was indexed at.
func (db *DB) SetChecksum(path, checksum string) error {
	_, err := db.conn.Exec(`
		INSERT INTO sources (path, checksum) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET checksum = excluded.checksum
	`, path, checksum)
	if err != nil {
		return fmt.Errorf("index: set checksum: %w", err)
	}
	return nil
}

// AllChecksums returns the checksum of every indexed library file.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM sources`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
