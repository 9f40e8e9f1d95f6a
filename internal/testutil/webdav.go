package testutil

import (
	"net/http/httptest"
	"testing"

	"golang.org/x/net/webdav"
)

// WebDAVServer starts an in-memory WebDAV server and returns its URL.
func WebDAVServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(&webdav.Handler{
		FileSystem: webdav.NewMemFS(),
		LockSystem: webdav.NewMemLS(),
	})
	t.Cleanup(srv.Close)
	return srv.URL
}
