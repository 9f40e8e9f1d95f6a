package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/lectern/internal/apperr"
)

func tempLibrary(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempLibrary(t)
	content := []byte(`[{"hash":"h1"}]`)
	if err := s.Write("books.json", content, true); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("books.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteWithoutOverwrite(t *testing.T) {
	s := tempLibrary(t)
	if err := s.Write("h1/config.json", []byte("first"), false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	err := s.Write("h1/config.json", []byte("second"), false)
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
	got, _ := s.Read("h1/config.json")
	if string(got) != "first" {
		t.Errorf("existing file clobbered: %q", got)
	}
}

func TestReadMissingIsNotFound(t *testing.T) {
	s := tempLibrary(t)
	if _, err := s.Read("nope.json"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestExists(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("h1/cover.png", []byte("png"), true)
	for path, want := range map[string]bool{
		"h1":           true,
		"h1/cover.png": true,
		"h1/book.epub": false,
		"h2":           false,
	} {
		got, err := s.Exists(path)
		if err != nil {
			t.Fatalf("Exists(%q): %v", path, err)
		}
		if got != want {
			t.Errorf("Exists(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestDelete(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("h1/book.epub", []byte("bye"), true)
	if err := s.Delete("h1/book.epub"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := s.Exists("h1/book.epub"); ok {
		t.Error("file still present after delete")
	}
	if err := s.Delete("h1/book.epub"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestMove(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("old.json", []byte("data"), true)
	if err := s.Move("old.json", "sub/new.json"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("sub/new.json")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("old.json"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestReadDirDepth(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("books.json", []byte("[]"), true)
	_ = s.Write("h1/config.json", []byte("{}"), true)
	_ = s.Write("h1/deep/x.bin", []byte("x"), true)

	top, err := s.ReadDir("", 1)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(top) != 2 {
		t.Errorf("depth 1: got %d entries, want 2: %+v", len(top), top)
	}

	two, err := s.ReadDir("", 2)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	// books.json, h1, h1/config.json, h1/deep
	if len(two) != 4 {
		t.Errorf("depth 2: got %d entries, want 4: %+v", len(two), two)
	}

	sub, err := s.ReadDir("h1", 1)
	if err != nil {
		t.Fatalf("ReadDir(h1): %v", err)
	}
	for _, e := range sub {
		if e.Path == "h1/config.json" && (e.IsDir || e.Size != 2) {
			t.Errorf("bad entry %+v", e)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempLibrary(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.json",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x"), true); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("atomic.json", []byte("original"), true)

	updated := []byte("updated content")
	if err := s.Write("atomic.json", updated, true); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.json")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, tempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "lectern-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
