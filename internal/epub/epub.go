// Package epub reads the parts of an EPUB the library needs: metadata, the
// cover image, and the spine text used for page locations and highlight
// lookup.
package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// ErrNoCover is returned by Cover when the package declares no cover image.
var ErrNoCover = errors.New("epub: no cover image")

// Book is an opened EPUB. It caches parsed sections and is not safe for
// concurrent use.
type Book struct {
	Title  string
	Author string

	files     map[string]*zip.File
	sections  []*Section
	coverPath string
}

// Section is one spine item.
type Section struct {
	Index int
	IDRef string
	Href  string

	// base is the package-document part of every CFI into this section,
	// e.g. "/6/4[chap01]".
	base  string
	index *textIndex
}

type container struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Titles   []string `xml:"title"`
		Creators []string `xml:"creator"`
		Metas    []struct {
			Name    string `xml:"name,attr"`
			Content string `xml:"content,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Items []struct {
		ID         string `xml:"id,attr"`
		Href       string `xml:"href,attr"`
		MediaType  string `xml:"media-type,attr"`
		Properties string `xml:"properties,attr"`
	} `xml:"manifest>item"`
	Itemrefs []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// Open parses an EPUB held in memory.
func Open(data []byte) (*Book, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("epub: open zip: %w", err)
	}
	b := &Book{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		b.files[f.Name] = f
	}

	raw, err := b.readFile("META-INF/container.xml")
	if err != nil {
		return nil, err
	}
	var c container
	if err := xml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("epub: parse container: %w", err)
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return nil, errors.New("epub: container declares no package document")
	}
	opfPath := c.Rootfiles[0].FullPath

	raw, err = b.readFile(opfPath)
	if err != nil {
		return nil, err
	}
	var pkg opfPackage
	if err := xml.Unmarshal(raw, &pkg); err != nil {
		return nil, fmt.Errorf("epub: parse package: %w", err)
	}
	if err := b.load(&pkg, path.Dir(opfPath), spineStep(raw)); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Book) load(pkg *opfPackage, dir string, spinePos int) error {
	if len(pkg.Metadata.Titles) > 0 {
		b.Title = strings.TrimSpace(pkg.Metadata.Titles[0])
	}
	if len(pkg.Metadata.Creators) > 0 {
		b.Author = strings.TrimSpace(pkg.Metadata.Creators[0])
	}

	hrefs := make(map[string]string, len(pkg.Items))
	for _, it := range pkg.Items {
		hrefs[it.ID] = resolve(dir, it.Href)
		if b.coverPath == "" && hasToken(it.Properties, "cover-image") {
			b.coverPath = hrefs[it.ID]
		}
	}
	if b.coverPath == "" {
		for _, m := range pkg.Metadata.Metas {
			if m.Name == "cover" {
				b.coverPath = hrefs[m.Content]
			}
		}
	}

	for i, ref := range pkg.Itemrefs {
		href, ok := hrefs[ref.IDRef]
		if !ok {
			return fmt.Errorf("epub: spine references unknown item %q", ref.IDRef)
		}
		b.sections = append(b.sections, &Section{
			Index: i,
			IDRef: ref.IDRef,
			Href:  href,
			base:  "/" + strconv.Itoa(spinePos) + "/" + strconv.Itoa((i+1)*2) + "[" + ref.IDRef + "]",
		})
	}
	if len(b.sections) == 0 {
		return errors.New("epub: empty spine")
	}
	return nil
}

// spineStep returns the CFI step of the spine element among the package
// element's children. EPUB packages almost always place it third (6).
func spineStep(opf []byte) int {
	dec := xml.NewDecoder(bytes.NewReader(opf))
	depth, n := 0, 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return 6
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 {
				n++
				if t.Name.Local == "spine" {
					return n * 2
				}
			}
		case xml.EndElement:
			depth--
		}
	}
}

func resolve(dir, href string) string {
	if u, err := url.PathUnescape(href); err == nil {
		href = u
	}
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	return path.Join(dir, href)
}

func hasToken(list, tok string) bool {
	for _, f := range strings.Fields(list) {
		if f == tok {
			return true
		}
	}
	return false
}

func (b *Book) readFile(name string) ([]byte, error) {
	f, ok := b.files[name]
	if !ok {
		return nil, fmt.Errorf("epub: missing %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("epub: open %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("epub: read %s: %w", name, err)
	}
	return data, nil
}

// Cover returns the cover image bytes.
func (b *Book) Cover() ([]byte, error) {
	if b.coverPath == "" {
		return nil, ErrNoCover
	}
	return b.readFile(b.coverPath)
}

// Sections returns the spine in reading order.
func (b *Book) Sections() []*Section {
	return b.sections
}

func (b *Book) textIndex(s *Section) (*textIndex, error) {
	if s.index != nil {
		return s.index, nil
	}
	raw, err := b.readFile(s.Href)
	if err != nil {
		return nil, err
	}
	idx, err := buildTextIndex(raw)
	if err != nil {
		return nil, fmt.Errorf("epub: section %s: %w", s.Href, err)
	}
	s.index = idx
	return idx, nil
}
