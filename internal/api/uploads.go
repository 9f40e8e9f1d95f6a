package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	maxBookBytes   = 200 << 20 // 200 MB
	maxExportBytes = 20 << 20
)

// readUpload reads the multipart "file" field, enforcing limit and, when
// ext is set, the file extension.
func readUpload(w http.ResponseWriter, r *http.Request, limit int64, ext string) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("file too large or invalid multipart")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("missing 'file' field in multipart form")
	}
	defer file.Close()

	name := filepath.Base(filepath.Clean(header.Filename))
	if ext != "" && !strings.EqualFold(filepath.Ext(name), ext) {
		return nil, fmt.Errorf("expected a %s file, got %q", ext, name)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		return nil, fmt.Errorf("failed to read upload")
	}
	return buf.Bytes(), nil
}

// AddBook handles POST /api/books (multipart/form-data, field "file").
//
//	@Summary		Add an EPUB to the library
//	@Tags			books
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"EPUB file"
//	@Success		201		{object}	models.Book
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/books [post]
func (h *Handler) AddBook(w http.ResponseWriter, r *http.Request) {
	data, err := readUpload(w, r, maxBookBytes, ".epub")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	b, err := h.svc.AddBook(r.Context(), data)
	if err != nil {
		writeError(w, "add book", err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// ImportNotes handles POST /api/books/{hash}/import with a Kindle notebook
// export in the "file" field.
func (h *Handler) ImportNotes(w http.ResponseWriter, r *http.Request) {
	data, err := readUpload(w, r, maxExportBytes, "")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	failed, err := h.svc.Import(r.Context(), chi.URLParam(r, "hash"), bytes.NewReader(data), h.onProgress)
	if err != nil {
		writeError(w, "import notes", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{Failures: nonNilFailures(failed)})
}
