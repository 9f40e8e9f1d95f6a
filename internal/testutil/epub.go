package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"
)

// Chapter is the body markup of one spine item in a test EPUB.
type Chapter string

// EPUB builds a minimal valid EPUB in memory. Each chapter string is placed
// inside <body>; a tiny cover image is included when withCover is set.
func EPUB(t *testing.T, title, author string, withCover bool, chapters ...Chapter) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	add := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}

	// The mimetype entry comes first and uncompressed, as readers sniff it.
	mw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mw.Write([]byte("application/epub+zip")); err != nil {
		t.Fatal(err)
	}
	add("META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`)

	var items, refs strings.Builder
	for i, ch := range chapters {
		id := fmt.Sprintf("c%d", i+1)
		fmt.Fprintf(&items, `<item id="%s" href="%s.xhtml" media-type="application/xhtml+xml"/>`, id, id)
		fmt.Fprintf(&refs, `<itemref idref="%s"/>`, id)
		add("OEBPS/"+id+".xhtml", `<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>`+id+`</title></head><body>`+string(ch)+`</body></html>`)
	}
	meta := ""
	if withCover {
		items.WriteString(`<item id="cover-img" href="images/cover.png" media-type="image/png"/>`)
		meta = `<meta name="cover" content="cover-img"/>`
		add("OEBPS/images/cover.png", "\x89PNG-test-cover")
	}
	add("OEBPS/content.opf", `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>`+title+`</dc:title><dc:creator>`+author+`</dc:creator>`+meta+`
  </metadata>
  <manifest>`+items.String()+`</manifest>
  <spine>`+refs.String()+`</spine>
</package>`)

	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
