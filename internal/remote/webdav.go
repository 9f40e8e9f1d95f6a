package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/studio-b12/gowebdav"

	"github.com/starford/lectern/internal/apperr"
	"github.com/starford/lectern/internal/models"
	"github.com/starford/lectern/internal/progress"
)

// Options configures a WebDAV connection.
type Options struct {
	URL      string
	User     string
	Password string
	Root     string
	Timeout  time.Duration
}

// WebDAV implements Client on top of a WebDAV server.
type WebDAV struct {
	c    *gowebdav.Client
	root string
}

var _ Client = (*WebDAV)(nil)

// Dial connects to the server and makes sure the root prefix exists,
// creating it with an empty manifest when missing. Every failure is
// reported as apperr.ErrConnection.
func Dial(ctx context.Context, opts Options) (*WebDAV, error) {
	c := gowebdav.NewClient(opts.URL, opts.User, opts.Password)
	if opts.Timeout > 0 {
		c.SetTimeout(opts.Timeout)
	}
	root := opts.Root
	if root == "" {
		root = DefaultRoot
	}
	if err := ctx.Err(); err != nil {
		return nil, apperr.Connection(err)
	}
	if err := c.Connect(); err != nil {
		return nil, apperr.Connection(err)
	}
	w := &WebDAV{c: c, root: root}
	if err := w.Bootstrap(ctx); err != nil {
		return nil, apperr.Connection(err)
	}
	return w, nil
}

// Bootstrap creates the root prefix and an empty books.json when the root
// does not exist yet.
func (w *WebDAV) Bootstrap(ctx context.Context) error {
	ok, err := w.Exists(ctx, "")
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := w.c.MkdirAll(w.root, 0o755); err != nil {
		return fmt.Errorf("remote: create root %s: %w", w.root, err)
	}
	return w.Write(ctx, models.ManifestFile, []byte("[]"), true, nil)
}

func (w *WebDAV) full(p string) string {
	return path.Join(w.root, p)
}

func wrap(op, p string, err error) error {
	if gowebdav.IsErrNotFound(err) {
		return fmt.Errorf("remote: %s %s: %w", op, p, apperr.ErrNotFound)
	}
	return fmt.Errorf("remote: %s %s: %w", op, p, err)
}

// Exists reports whether p exists on the server.
func (w *WebDAV) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := w.c.Stat(w.full(p))
	switch {
	case err == nil:
		return true, nil
	case gowebdav.IsErrNotFound(err):
		return false, nil
	default:
		return false, wrap("stat", p, err)
	}
}

// Read downloads p.
func (w *WebDAV) Read(ctx context.Context, p string, fn progress.Func) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	total := int64(-1)
	if fn != nil {
		info, err := w.c.Stat(w.full(p))
		if err != nil {
			return nil, wrap("stat", p, err)
		}
		total = info.Size()
	}
	rc, err := w.c.ReadStream(w.full(p))
	if err != nil {
		return nil, wrap("read", p, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(progress.NewReader(rc, total, fn))
	if err != nil {
		return nil, wrap("read", p, err)
	}
	return data, nil
}

// Write uploads data to p, creating parent collections as needed.
func (w *WebDAV) Write(ctx context.Context, p string, data []byte, overwrite bool, fn progress.Func) error {
	if !overwrite {
		ok, err := w.Exists(ctx, p)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("remote: write %s: %w", p, apperr.ErrAlreadyExists)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	body := progress.NewReader(bytes.NewReader(data), int64(len(data)), fn)
	if err := w.c.WriteStream(w.full(p), body, 0o644); err != nil {
		return wrap("write", p, err)
	}
	return nil
}

// ReadDir lists the direct children of dir.
func (w *WebDAV) ReadDir(ctx context.Context, dir string) ([]models.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := w.c.ReadDir(w.full(dir))
	if err != nil {
		return nil, wrap("list", dir, err)
	}
	out := make([]models.FileInfo, 0, len(infos))
	for _, fi := range infos {
		out = append(out, models.FileInfo{
			Path:      path.Join(dir, fi.Name()),
			IsDir:     fi.IsDir(),
			Size:      fi.Size(),
			UpdatedAt: fi.ModTime(),
		})
	}
	return out, nil
}

// Mkdir creates dir and any missing parents.
func (w *WebDAV) Mkdir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.c.MkdirAll(w.full(dir), 0o755); err != nil {
		return wrap("mkdir", dir, err)
	}
	return nil
}

// Delete removes p.
func (w *WebDAV) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.c.Remove(w.full(p)); err != nil {
		return wrap("delete", p, err)
	}
	return nil
}
