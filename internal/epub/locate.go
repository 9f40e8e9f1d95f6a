package epub

import (
	"sort"

	"github.com/starford/lectern/internal/cfi"
)

// DefaultPageChars is the location granularity used when none is configured.
const DefaultPageChars = 600

// Cursor is a position in the book's whitespace-free text stream. The zero
// value is the beginning of the book.
type Cursor struct {
	Section int
	Offset  int
}

// Match is a located text fragment.
type Match struct {
	CFI   string
	Start string
	End   string
	// Next is where the following forward search should begin.
	Next Cursor
}

// Search finds text at or after from, ignoring whitespace on both sides.
// It never looks behind from, so a sequence of searches scans the book once.
func (b *Book) Search(text string, from Cursor) (Match, bool, error) {
	needle := stripSpace(text)
	if len(needle) == 0 {
		return Match{}, false, nil
	}
	for s := from.Section; s < len(b.sections); s++ {
		sec := b.sections[s]
		idx, err := b.textIndex(sec)
		if err != nil {
			return Match{}, false, err
		}
		start := 0
		if s == from.Section {
			start = min(from.Offset, len(idx.runes))
		}
		i := indexRunes(idx.runes[start:], needle)
		if i < 0 {
			continue
		}
		i += start
		first, last := idx.pos[i], idx.pos[i+len(needle)-1]
		rng := sec.rangeCFI(idx.nodes[first.node], first.off, idx.nodes[last.node], last.off+last.width)
		s0, e0 := cfi.Split(rng)
		return Match{CFI: rng, Start: s0, End: e0, Next: Cursor{Section: s, Offset: i + 1}}, true, nil
	}
	return Match{}, false, nil
}

// rangeCFI builds "epubcfi(base!common,/start:off,/end:off)".
func (s *Section) rangeCFI(a textNode, aOff int, b textNode, bOff int) string {
	n := min(len(a.steps), len(b.steps)) - 1
	common := 0
	for common < n && a.steps[common].Index == b.steps[common].Index {
		common++
	}
	parent := s.base + "!" + cfi.Location{Steps: a.steps[:common]}.String()
	start := cfi.Location{Steps: a.steps[common:], Offset: aOff, HasOffset: true}.String()
	end := cfi.Location{Steps: b.steps[common:], Offset: bOff, HasOffset: true}.String()
	return cfi.Range(parent, start, end)
}

func (s *Section) pointCFI(n textNode, off int) string {
	return cfi.Point(s.base + "!" + cfi.Location{Steps: n.steps, Offset: off, HasOffset: true}.String())
}

// Locations splits the book into pages of roughly chars non-space
// characters. Each section starts a new page. The result is sorted and is
// what pages.json stores.
func (b *Book) Locations(chars int) ([]string, error) {
	if chars <= 0 {
		chars = DefaultPageChars
	}
	var out []string
	for _, sec := range b.sections {
		idx, err := b.textIndex(sec)
		if err != nil {
			return nil, err
		}
		for k := 0; k < len(idx.pos); k += chars {
			p := idx.pos[k]
			out = append(out, sec.pointCFI(idx.nodes[p.node], p.off))
		}
	}
	return out, nil
}

// PageOf returns the 1-based page holding target given sorted locations,
// or 0 when there are none.
func PageOf(locations []string, target string) int {
	if len(locations) == 0 {
		return 0
	}
	n := sort.Search(len(locations), func(i int) bool {
		return cfi.Compare(locations[i], target) > 0
	})
	return max(n, 1)
}
