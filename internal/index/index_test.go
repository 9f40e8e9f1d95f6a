package index

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/lectern/internal/models"
	"github.com/starford/lectern/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "lectern-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func writeJSON(t *testing.T, store storage.Provider, p string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Write(p, data, true); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	for _, table := range []string{"books", "notes", "sources"} {
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestReplaceNotes(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertBook(BookRow{Hash: "h1", Name: "Book A"}); err != nil {
		t.Fatalf("UpsertBook: %v", err)
	}
	first := []NoteRow{{CFI: "a", Page: 2, Text: "old"}, {CFI: "b", Page: 1, Text: "keep"}}
	if err := db.ReplaceNotes("h1", first); err != nil {
		t.Fatalf("ReplaceNotes: %v", err)
	}
	if err := db.ReplaceNotes("h1", []NoteRow{{CFI: "b", Page: 1, Text: "keep"}}); err != nil {
		t.Fatalf("ReplaceNotes: %v", err)
	}
	notes, err := db.Notes("h1")
	if err != nil {
		t.Fatalf("Notes: %v", err)
	}
	if len(notes) != 1 || notes[0].CFI != "b" || notes[0].Hash != "h1" {
		t.Errorf("notes = %+v", notes)
	}
}

func TestDeleteBook(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertBook(BookRow{Hash: "h1", Name: "Book A"})
	_ = db.ReplaceNotes("h1", []NoteRow{{CFI: "a", Text: "x"}})
	_ = db.SetChecksum("h1/config.json", "c1")

	if err := db.DeleteBook("h1"); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}
	hashes, _ := db.BookHashes()
	if len(hashes) != 0 {
		t.Errorf("hashes = %v", hashes)
	}
	notes, _ := db.Notes("h1")
	if len(notes) != 0 {
		t.Errorf("notes = %+v", notes)
	}
	if cs, _ := db.GetChecksum("h1/config.json"); cs != "" {
		t.Errorf("checksum survived delete: %q", cs)
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestSetChecksumOverwrites(t *testing.T) {
	db := testDB(t)
	_ = db.SetChecksum("books.json", "1")
	_ = db.SetChecksum("books.json", "2")
	all, err := db.AllChecksums()
	if err != nil {
		t.Fatalf("AllChecksums: %v", err)
	}
	if len(all) != 1 || all["books.json"] != "2" {
		t.Errorf("checksums = %v", all)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertBook(BookRow{Hash: "h1", Name: "Book A"})
	_ = db.ReplaceNotes("h1", []NoteRow{
		{CFI: "a", Page: 3, Text: "uniqueword appears here"},
		{CFI: "b", Text: "nothing", Annotation: "other"},
	})

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Hash != "h1" || results[0].CFI != "a" || results[0].Book != "Book A" {
		t.Errorf("search results = %+v, want 1 hit for h1/a", results)
	}
	if results[0].Page != 3 {
		t.Errorf("page = %d", results[0].Page)
	}
}

func TestSyncFromLibrary(t *testing.T) {
	db := testDB(t)
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	log := quietLogger()

	writeJSON(t, store, models.ManifestFile, []models.Book{
		{Hash: "h1", Type: models.BookTypeEPUB, Name: "Book A", TS: 1},
		{Hash: "h2", Type: models.BookTypeEPUB, Name: "Gone", TS: 1, Removed: true},
	})
	writeJSON(t, store, "h1/config.json", models.BookConfig{Notes: []models.Note{
		{CFI: "a", Start: "a", Text: "live highlight", Modified: 1},
		{CFI: "b", Start: "b", Text: "deleted highlight", Modified: 1, Removed: 2},
	}})

	if err := Sync(db, store, log); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	hashes, _ := db.BookHashes()
	if _, ok := hashes["h1"]; !ok || len(hashes) != 1 {
		t.Fatalf("hashes = %v", hashes)
	}
	notes, _ := db.Notes("h1")
	if len(notes) != 1 || notes[0].Text != "live highlight" {
		t.Fatalf("notes = %+v", notes)
	}

	// Unchanged files are skipped; a changed config is reindexed.
	writeJSON(t, store, "h1/config.json", models.BookConfig{Notes: []models.Note{
		{CFI: "c", Start: "c", Text: "new highlight", Modified: 3},
	}})
	if err := Sync(db, store, log); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	notes, _ = db.Notes("h1")
	if len(notes) != 1 || notes[0].CFI != "c" {
		t.Fatalf("after change notes = %+v", notes)
	}

	// Removing the book drops it.
	writeJSON(t, store, models.ManifestFile, []models.Book{
		{Hash: "h1", Type: models.BookTypeEPUB, Name: "Book A", TS: 4, Removed: true},
	})
	if err := Sync(db, store, log); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	hashes, _ = db.BookHashes()
	if len(hashes) != 0 {
		t.Errorf("removed book still indexed: %v", hashes)
	}
}

func TestSyncEmptyLibrary(t *testing.T) {
	db := testDB(t)
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatalf("Sync on empty library: %v", err)
	}
}
