package epub

import (
	"bytes"
	"unicode"
	"unicode/utf16"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/starford/lectern/internal/cfi"
)

// textNode is one DOM text node with its CFI path below the html element.
type textNode struct {
	steps []cfi.Step // element steps followed by the odd text-node step
}

// charPos locates one non-space character: the text node holding it, its
// UTF-16 offset inside the node and its UTF-16 width.
type charPos struct {
	node  int
	off   int
	width int
}

// textIndex is the whitespace-free character stream of a section. Searching
// it ignores line breaks and indentation the way highlight exports do.
type textIndex struct {
	nodes []textNode
	runes []rune
	pos   []charPos
}

func buildTextIndex(raw []byte) (*textIndex, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	idx := &textIndex{}
	root := findElement(doc, atom.Html)
	if root == nil {
		return idx, nil
	}
	idx.walk(root, nil)
	return idx, nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}
	return nil
}

func (idx *textIndex) walk(parent *html.Node, steps []cfi.Step) {
	elems := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			elems++
			switch c.DataAtom {
			case atom.Head, atom.Script, atom.Style:
				continue
			}
			step := cfi.Step{Index: elems * 2, ID: attr(c, "id")}
			idx.walk(c, appendStep(steps, step))
		case html.TextNode:
			idx.addText(appendStep(steps, cfi.Step{Index: elems*2 + 1}), c.Data)
		}
	}
}

func appendStep(steps []cfi.Step, s cfi.Step) []cfi.Step {
	out := make([]cfi.Step, len(steps), len(steps)+1)
	copy(out, steps)
	return append(out, s)
}

func (idx *textIndex) addText(steps []cfi.Step, text string) {
	node := len(idx.nodes)
	added := false
	off := 0
	for _, r := range text {
		w := utf16.RuneLen(r)
		if w < 0 {
			w = 1
		}
		if !unicode.IsSpace(r) {
			idx.runes = append(idx.runes, r)
			idx.pos = append(idx.pos, charPos{node: node, off: off, width: w})
			added = true
		}
		off += w
	}
	if added {
		idx.nodes = append(idx.nodes, textNode{steps: steps})
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// stripSpace removes every whitespace rune.
func stripSpace(s string) []rune {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if !unicode.IsSpace(r) {
			out = append(out, r)
		}
	}
	return out
}

func indexRunes(hay, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(hay) {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j, r := range needle {
			if hay[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}
