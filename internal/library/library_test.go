package library

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/starford/lectern/internal/apperr"
	"github.com/starford/lectern/internal/models"
	"github.com/starford/lectern/internal/storage"
	"github.com/starford/lectern/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLibrary(t *testing.T) (*Library, *storage.FS, *int64) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	clock := int64(1000)
	lib, err := Open(fs, WithLogger(quietLogger()), WithClock(func() int64 { return clock }))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return lib, fs, &clock
}

func hashes(books []models.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.Hash
	}
	return out
}

func TestOpenEmpty(t *testing.T) {
	lib, _, _ := testLibrary(t)
	if n := len(lib.Books()); n != 0 {
		t.Errorf("books = %d", n)
	}
}

func TestInsertMoveToTopPersists(t *testing.T) {
	lib, fs, _ := testLibrary(t)
	for _, h := range []string{"a", "b", "c"} {
		lib.Insert(models.Book{Hash: h})
	}
	if got := hashes(lib.Books()); got[0] != "c" || got[2] != "a" {
		t.Fatalf("order = %v", got)
	}
	if err := lib.MoveToTop("a"); err != nil {
		t.Fatalf("MoveToTop: %v", err)
	}
	reloaded, err := Open(fs)
	if err != nil {
		t.Fatal(err)
	}
	got := hashes(reloaded.Books())
	if len(got) != 3 || got[0] != "a" || got[1] != "c" || got[2] != "b" {
		t.Errorf("persisted order = %v, want [a c b]", got)
	}
	if err := lib.MoveToTop("zzz"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("MoveToTop(missing) err = %v", err)
	}
}

func TestInsertReplacesSameHash(t *testing.T) {
	lib, _, _ := testLibrary(t)
	lib.Insert(models.Book{Hash: "a", TS: 1})
	lib.Insert(models.Book{Hash: "b"})
	lib.Insert(models.Book{Hash: "a", TS: 2})
	books := lib.Books()
	if len(books) != 2 || books[0].Hash != "a" || books[0].TS != 2 {
		t.Errorf("books = %+v", books)
	}
}

func TestAddRemoveReAdd(t *testing.T) {
	lib, fs, clock := testLibrary(t)
	body := testutil.EPUB(t, "Book A", "Jane Roe", true, `<p>text</p>`)

	book, err := lib.Add(body)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if book.Name != "Book A" || book.Author != "Jane Roe" || book.TS != 1000 || book.Type != models.BookTypeEPUB {
		t.Errorf("book = %+v", book)
	}
	if book.Cover != book.File(models.CoverFile) {
		t.Errorf("cover = %q", book.Cover)
	}
	for _, name := range []string{"Book A.epub", models.CoverFile, models.ConfigFile} {
		if ok, _ := fs.Exists(book.File(name)); !ok {
			t.Errorf("%s missing after add", name)
		}
	}

	if _, err := lib.Add(body); !errors.Is(err, apperr.ErrPrecondition) {
		t.Errorf("duplicate add err = %v, want ErrPrecondition", err)
	}

	// reading state written before removal must survive re-adding
	cfg := models.NewBookConfig()
	cfg.Progress = 0.4
	if err := lib.SaveConfig(book, cfg); err != nil {
		t.Fatal(err)
	}

	*clock = 2000
	removed, err := lib.Remove(book.Hash)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed.Removed || removed.TS != 2000 {
		t.Errorf("removed = %+v", removed)
	}
	if ok, _ := fs.Exists(book.File("Book A.epub")); ok {
		t.Error("body still present after remove")
	}

	*clock = 3000
	again, err := lib.Add(body)
	if err != nil {
		t.Fatalf("re-Add: %v", err)
	}
	if again.Removed || again.TS != 3000 || again.Hash != book.Hash {
		t.Errorf("re-added = %+v", again)
	}
	if len(lib.Books()) != 1 {
		t.Errorf("manifest rows = %d, want 1", len(lib.Books()))
	}
	got, err := lib.LoadConfig(again)
	if err != nil {
		t.Fatal(err)
	}
	if got.Progress != 0.4 {
		t.Errorf("progress after re-add = %v", got.Progress)
	}
}

func TestAddDifferentBytesIsNewBook(t *testing.T) {
	lib, _, _ := testLibrary(t)
	a, err := lib.Add(testutil.EPUB(t, "Same", "X", false, `<p>one</p>`))
	if err != nil {
		t.Fatal(err)
	}
	b, err := lib.Add(testutil.EPUB(t, "Same", "X", false, `<p>one!</p>`))
	if err != nil {
		t.Fatal(err)
	}
	if a.Hash == b.Hash || len(lib.Books()) != 2 {
		t.Errorf("edited content treated as the same book")
	}
}

func TestAddRejectsNonEPUB(t *testing.T) {
	lib, _, _ := testLibrary(t)
	if _, err := lib.Add([]byte("plain text")); !errors.Is(err, apperr.ErrPrecondition) {
		t.Errorf("err = %v, want ErrPrecondition", err)
	}
}

func TestConfigAndPages(t *testing.T) {
	lib, _, _ := testLibrary(t)
	book := models.Book{Hash: "h1", Name: "n"}

	cfg, err := lib.LoadConfig(book)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Notes == nil || cfg.Bookmarks == nil {
		t.Error("missing config should decode with empty lists")
	}

	pages, err := lib.LoadPages(book)
	if err != nil || pages != nil {
		t.Fatalf("LoadPages = %v, %v", pages, err)
	}
	if err := lib.SavePages(book, []string{"epubcfi(/6/2!/4/1:0)"}); err != nil {
		t.Fatal(err)
	}
	pages, _ = lib.LoadPages(book)
	if len(pages) != 1 {
		t.Errorf("pages = %v", pages)
	}
}

func TestDecodeConfigWireFormat(t *testing.T) {
	cfg, err := DecodeConfig([]byte(`{"ts":5,"progress":0.5,"notes":null,"removedTs":{"x":9},"bookshelf":{"value":null,"ts":3}}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TS != 5 || cfg.RemovedTS["x"] != 9 || cfg.Bookshelf.TS != 3 || cfg.Bookshelf.Value != nil {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Notes == nil {
		t.Error("null notes not normalised")
	}
}

func TestConfigNotesSortedByStart(t *testing.T) {
	cfg, err := DecodeConfig([]byte(`{"progress":0,"notes":[
		{"cfi":"epubcfi(/6/4!/4/2,/1:50,/1:55)","start":"epubcfi(/6/4!/4/2/1:50)","end":"epubcfi(/6/4!/4/2/1:55)","modified":1},
		{"cfi":"epubcfi(/6/2!/4/2,/1:9,/1:12)","start":"epubcfi(/6/2!/4/2/1:9)","end":"epubcfi(/6/2!/4/2/1:12)","modified":1}
	],"bookmarks":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Notes[0].Start != "epubcfi(/6/2!/4/2/1:9)" {
		t.Errorf("decoded order = %s, %s", cfg.Notes[0].Start, cfg.Notes[1].Start)
	}

	lib, _, _ := testLibrary(t)
	book := models.Book{Hash: "h1", Name: "n"}
	cfg.Notes[0], cfg.Notes[1] = cfg.Notes[1], cfg.Notes[0]
	if err := lib.SaveConfig(book, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Notes[0].Start != "epubcfi(/6/2!/4/2/1:9)" {
		t.Error("SaveConfig should sort in place")
	}
}

func TestMigrate(t *testing.T) {
	lib, src, _ := testLibrary(t)
	if _, err := lib.Add(testutil.EPUB(t, "Book A", "Jane", true, `<p>x</p>`)); err != nil {
		t.Fatal(err)
	}
	dst, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	n, err := Migrate(src, dst, quietLogger())
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// books.json + body + cover + config
	if n != 4 {
		t.Errorf("copied = %d, want 4", n)
	}
	moved, err := Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	if len(moved.Books()) != 1 {
		t.Errorf("migrated manifest = %+v", moved.Books())
	}
}
