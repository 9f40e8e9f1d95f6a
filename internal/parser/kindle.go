// Package parser reads highlight exports produced by e-readers.
package parser

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/starford/lectern/internal/apperr"
)

// Kindle "Export Notebook" vocabulary.
const (
	kindleTitleSel   = "div.bookTitle"
	kindleHeadingSel = "h3.noteHeading"
	kindleTextSel    = "div.noteText"
)

// Headings of free-text notes, as opposed to highlights, start with one of
// these depending on the device language.
var noteHeadingPrefixes = []string{"备注", "Note"}

// titleWrappers are bracket pairs some exports put around the book title.
var titleWrappers = [][2]string{{"《", "》"}, {"“", "”"}, {`"`, `"`}, {"「", "」"}, {"'", "'"}}

// KindleEntry is one highlight with its optional attached note.
type KindleEntry struct {
	Heading    string
	Text       string
	Annotation string
}

// KindleExport is a parsed notebook export.
type KindleExport struct {
	Title   string
	Entries []KindleEntry
}

// ParseKindle reads a Kindle notebook HTML export. A note directly after a
// highlight becomes that highlight's annotation rather than an entry of its
// own. Entries without text (bookmarks) are dropped.
func ParseKindle(r io.Reader) (*KindleExport, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, apperr.Precondition("not a valid Kindle notes file: %v", err)
	}
	titleSel := doc.Find(kindleTitleSel).First()
	if titleSel.Length() == 0 {
		return nil, apperr.Precondition("not a valid Kindle notes file")
	}

	var headings, texts []string
	doc.Find(kindleHeadingSel).Each(func(_ int, s *goquery.Selection) {
		headings = append(headings, collapse(s.Text()))
	})
	doc.Find(kindleTextSel).Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, s.Contents().First().Text())
	})
	n := min(len(headings), len(texts))

	out := &KindleExport{Title: unwrapTitle(titleSel.Text())}
	for i := 0; i < n; {
		e := KindleEntry{Heading: headings[i], Text: texts[i]}
		step := 1
		if i+1 < n {
			e.Text = strings.Replace(e.Text, headings[i+1], "", 1)
			if isNoteHeading(headings[i+1]) && !isNoteHeading(headings[i]) {
				e.Annotation = texts[i+1]
				if i+2 < len(headings) {
					e.Annotation = strings.Replace(e.Annotation, headings[i+2], "", 1)
				}
				step = 2
			}
		}
		e.Text = collapse(e.Text)
		e.Annotation = collapse(e.Annotation)
		if e.Text != "" {
			out.Entries = append(out.Entries, e)
		}
		i += step
	}
	return out, nil
}

func isNoteHeading(h string) bool {
	for _, p := range noteHeadingPrefixes {
		if strings.HasPrefix(h, p) {
			return true
		}
	}
	return false
}

func unwrapTitle(s string) string {
	s = strings.TrimSpace(s)
	for _, w := range titleWrappers {
		if len(s) >= len(w[0])+len(w[1]) && strings.HasPrefix(s, w[0]) && strings.HasSuffix(s, w[1]) &&
			utf8.RuneCountInString(s) > 2 {
			return strings.TrimSpace(s[len(w[0]) : len(s)-len(w[1])])
		}
	}
	return s
}

// collapse trims s and folds internal whitespace runs to one space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
