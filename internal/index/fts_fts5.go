//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			hash UNINDEXED,
			cfi UNINDEXED,
			book,
			text,
			annotation,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, hash, cfi, book, text, annotation string) error {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE hash = ? AND cfi = ?`, hash, cfi)
	_, err := tx.Exec(`INSERT INTO notes_fts (hash, cfi, book, text, annotation) VALUES (?, ?, ?, ?, ?)`,
		hash, cfi, book, text, annotation)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, hash string) {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE hash = ?`, hash)
}

// Search performs an FTS5 full-text search and returns matching highlights
// with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.hash,
		       f.book,
		       f.cfi,
		       COALESCE(n.page, 0),
		       f.text,
		       f.annotation,
		       snippet(notes_fts, 3, '<b>', '</b>', '...', 32)
		FROM notes_fts f
		LEFT JOIN notes n ON n.hash = f.hash AND n.cfi = f.cfi
		WHERE notes_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Hash, &r.Book, &r.CFI, &r.Page, &r.Text, &r.Annotation, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
