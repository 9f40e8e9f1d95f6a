//go:build sqlite_fts5

package index

import (
	"strings"
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&count); err != nil {
		t.Fatalf("notes_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertBook(BookRow{Hash: "h1", Name: "Search Book"})
	if err := db.ReplaceNotes("h1", []NoteRow{
		{CFI: "a", Page: 4, Text: "Readers keep powerful full-text highlights."},
	}); err != nil {
		t.Fatalf("ReplaceNotes: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Hash != "h1" || results[0].Page != 4 {
		t.Errorf("result = %+v", results[0])
	}
	if !strings.Contains(results[0].Snippet, "<b>") {
		t.Errorf("snippet should contain highlight markers, got %q", results[0].Snippet)
	}
}

func TestFTS5_ReplaceClearsOldEntries(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertBook(BookRow{Hash: "h1", Name: "Book"})
	_ = db.ReplaceNotes("h1", []NoteRow{{CFI: "a", Text: "alphaword"}})
	_ = db.ReplaceNotes("h1", []NoteRow{{CFI: "b", Text: "betaword"}})

	results, _ := db.Search("alphaword", 10)
	if len(results) != 0 {
		t.Errorf("stale fts entry found: %+v", results)
	}
	results, _ = db.Search("betaword", 10)
	if len(results) != 1 {
		t.Errorf("expected new entry, got %+v", results)
	}
}
