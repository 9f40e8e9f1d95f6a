package annotations

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/starford/lectern/internal/apperr"
	"github.com/starford/lectern/internal/library"
	"github.com/starford/lectern/internal/models"
	"github.com/starford/lectern/internal/notify"
	"github.com/starford/lectern/internal/remote"
	"github.com/starford/lectern/internal/storage"
	"github.com/starford/lectern/internal/syncer"
	"github.com/starford/lectern/internal/testutil"
)

type recorder struct {
	mu     sync.Mutex
	levels []notify.Level
}

func (r *recorder) Notify(level notify.Level, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels = append(r.levels, level)
}

func (r *recorder) has(level notify.Level) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.levels {
		if l == level {
			return true
		}
	}
	return false
}

func export(title string, entries ...[2]string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="bookTitle">` + title + `</div>`)
	for _, e := range entries {
		b.WriteString(`<h3 class="noteHeading">` + e[0] + `</h3><div class="noteText">` + e[1] + `</div>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

type fixture struct {
	store *storage.FS
	lib   *library.Library
	s     *syncer.Syncer
	sink  *recorder
	im    *Importer
}

func newFixture(t *testing.T, rc remote.Client) *fixture {
	t.Helper()
	_, store := testutil.TestLibrary(t)
	lib, err := library.Open(store, library.WithLogger(testutil.Logger()), library.WithClock(func() int64 { return 5000 }))
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{store: store, lib: lib, sink: &recorder{}}
	opts := []syncer.Option{syncer.WithLogger(testutil.Logger()), syncer.WithSink(f.sink)}
	if rc != nil {
		opts = append(opts, syncer.WithRemote(rc))
	}
	f.s = syncer.New(lib, opts...)
	f.im = NewImporter(f.s, f.sink, testutil.Logger(), 10)
	return f
}

func (f *fixture) addBook(t *testing.T) models.Book {
	t.Helper()
	body := testutil.EPUB(t, "Book A", "Jane Roe", false,
		"<p>Hello brave new world</p><p>Some filler text here</p>",
		"<p>Second paragraph of the story</p>")
	book, err := f.lib.Add(body)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return book
}

func TestImportTitleMismatch(t *testing.T) {
	f := newFixture(t, nil)
	book := models.Book{Hash: "abc", Name: "Book B"}

	_, err := f.im.Import(context.Background(), book, strings.NewReader(export("Book A")), nil)
	if !errors.Is(err, apperr.ErrPrecondition) {
		t.Fatalf("err = %v, want precondition", err)
	}
	if ok, _ := f.store.Exists(book.Dir()); ok {
		t.Error("mismatched import touched the library")
	}
}

func TestImportNotKindle(t *testing.T) {
	f := newFixture(t, nil)
	book := f.addBook(t)
	_, err := f.im.Import(context.Background(), book, strings.NewReader("<html><body>nope</body></html>"), nil)
	if !errors.Is(err, apperr.ErrPrecondition) {
		t.Fatalf("err = %v, want precondition", err)
	}
}

func TestImportOffline(t *testing.T) {
	f := newFixture(t, nil)
	book := f.addBook(t)

	exp := export("《Book A》",
		[2]string{"Highlight - Location 1", "Hello brave  new world"},
		[2]string{"Note - Location 1", "first thought"},
		[2]string{"Highlight - Location 9", "not in this book"},
		[2]string{"Highlight - Location 20", "Second paragraph"},
	)
	failed, err := f.im.Import(context.Background(), book, strings.NewReader(exp), nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(failed) != 1 || failed[0].Text != "not in this book" {
		t.Fatalf("failed = %+v", failed)
	}
	if !strings.Contains(failed[0].String(), "not in this book") {
		t.Errorf("String() = %q", failed[0].String())
	}
	if !f.sink.has(notify.Warning) {
		t.Error("offline import should warn")
	}

	cfg, err := f.lib.LoadConfig(book)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Notes) != 2 {
		t.Fatalf("notes = %+v", cfg.Notes)
	}
	first, second := cfg.Notes[0], cfg.Notes[1]
	if first.Text != "Hello brave new world" || first.Annotation != "first thought" {
		t.Errorf("first = %+v", first)
	}
	if !strings.Contains(second.CFI, "[c2]") {
		t.Errorf("second cfi = %q, want it in the second chapter", second.CFI)
	}
	if first.Page < 1 || second.Page <= first.Page {
		t.Errorf("pages = %d, %d", first.Page, second.Page)
	}
	if first.Modified != 5000 {
		t.Errorf("modified = %d", first.Modified)
	}

	pages, err := f.lib.LoadPages(book)
	if err != nil || len(pages) == 0 {
		t.Fatalf("pages.json not generated: %v %v", pages, err)
	}
}

func TestImportTwiceFolds(t *testing.T) {
	f := newFixture(t, nil)
	book := f.addBook(t)
	exp := export("Book A", [2]string{"Highlight - Location 1", "Hello brave new world"})

	for range 2 {
		if _, err := f.im.Import(context.Background(), book, strings.NewReader(exp), nil); err != nil {
			t.Fatalf("Import: %v", err)
		}
	}
	cfg, err := f.lib.LoadConfig(book)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Notes) != 1 {
		t.Errorf("notes = %+v, want one", cfg.Notes)
	}
}

func TestImportSyncsWhenConnected(t *testing.T) {
	ctx := context.Background()
	rc, err := remote.Dial(ctx, remote.Options{URL: testutil.WebDAVServer(t)})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	f := newFixture(t, rc)
	book := f.addBook(t)
	if _, err := f.s.SyncBooks(ctx, nil); err != nil {
		t.Fatalf("SyncBooks: %v", err)
	}

	exp := export("Book A", [2]string{"Highlight - Location 20", "Second paragraph"})
	if _, err := f.im.Import(ctx, book, strings.NewReader(exp), nil); err != nil {
		t.Fatalf("Import: %v", err)
	}

	data, err := rc.Read(ctx, book.File(models.ConfigFile), nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := library.DecodeConfig(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Notes) != 1 || cfg.Notes[0].Text != "Second paragraph" {
		t.Errorf("remote notes = %+v", cfg.Notes)
	}
	if f.sink.has(notify.Warning) || f.sink.has(notify.Error) {
		t.Errorf("unexpected notices: %v", f.sink.levels)
	}
}

func TestImportPushesStoredConfig(t *testing.T) {
	ctx := context.Background()
	rc, err := remote.Dial(ctx, remote.Options{URL: testutil.WebDAVServer(t)})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	f := newFixture(t, rc)
	book := f.addBook(t)
	if _, err := f.s.SyncBooks(ctx, nil); err != nil {
		t.Fatalf("SyncBooks: %v", err)
	}
	if _, err := f.s.UpdateConfig(book, func(cfg *models.BookConfig) error {
		cfg.Progress = 0.7
		cfg.Bookmarks = append(cfg.Bookmarks, models.Note{
			CFI:      "epubcfi(/6/2[c1]!/4/2/1:0)",
			Start:    "epubcfi(/6/2[c1]!/4/2/1:0)",
			End:      "epubcfi(/6/2[c1]!/4/2/1:0)",
			Modified: 4000,
		})
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	exp := export("Book A", [2]string{"Highlight - Location 20", "Second paragraph"})
	if _, err := f.im.Import(ctx, book, strings.NewReader(exp), nil); err != nil {
		t.Fatalf("Import: %v", err)
	}

	local, err := f.lib.LoadConfig(book)
	if err != nil {
		t.Fatal(err)
	}
	data, err := rc.Read(ctx, book.File(models.ConfigFile), nil)
	if err != nil {
		t.Fatal(err)
	}
	remoteCfg, err := library.DecodeConfig(data)
	if err != nil {
		t.Fatal(err)
	}
	for name, cfg := range map[string]*models.BookConfig{"local": local, "remote": remoteCfg} {
		if len(cfg.Notes) != 1 || len(cfg.Bookmarks) != 1 {
			t.Errorf("%s notes=%d bookmarks=%d, want 1 and 1", name, len(cfg.Notes), len(cfg.Bookmarks))
		}
	}
	if local.Progress != 0.7 {
		t.Errorf("local progress = %v, want 0.7", local.Progress)
	}
}
