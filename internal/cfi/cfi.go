// Package cfi parses and orders EPUB canonical fragment identifiers.
//
// Only the parts needed for ordering are kept: step indices, indirections and
// the terminal character offset. Text and side assertions, temporal and
// spatial terminals are accepted and dropped.
package cfi

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	prefix = "epubcfi("
	suffix = ")"
)

// Step is one "/N[id]" component of a path.
type Step struct {
	Index int
	ID    string
	// Indirect is set on the first step after a "!".
	Indirect bool
}

// Location is a point in a publication.
type Location struct {
	Steps     []Step
	Offset    int
	HasOffset bool
}

// String renders l as a path without the epubcfi() wrapper.
func (l Location) String() string {
	var b strings.Builder
	for _, s := range l.Steps {
		if s.Indirect {
			b.WriteByte('!')
		}
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(s.Index))
		if s.ID != "" {
			b.WriteByte('[')
			b.WriteString(s.ID)
			b.WriteByte(']')
		}
	}
	if l.HasOffset {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(l.Offset))
	}
	return b.String()
}

// CFI is a parsed identifier. For a point, Parent holds the whole path and
// IsRange is false.
type CFI struct {
	Parent  Location
	Start   Location
	End     Location
	IsRange bool

	rawParent, rawStart, rawEnd string
}

// StartLocation returns the absolute start point.
func (c *CFI) StartLocation() Location {
	if !c.IsRange {
		return c.Parent
	}
	return join(c.Parent, c.Start)
}

// EndLocation returns the absolute end point.
func (c *CFI) EndLocation() Location {
	if !c.IsRange {
		return c.Parent
	}
	return join(c.Parent, c.End)
}

func join(parent, rel Location) Location {
	steps := make([]Step, 0, len(parent.Steps)+len(rel.Steps))
	steps = append(steps, parent.Steps...)
	steps = append(steps, rel.Steps...)
	return Location{Steps: steps, Offset: rel.Offset, HasOffset: rel.HasOffset}
}

// Parse parses an "epubcfi(...)" string.
func Parse(s string) (*CFI, error) {
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, suffix) {
		return nil, fmt.Errorf("cfi: missing epubcfi() wrapper: %q", s)
	}
	body := s[len(prefix) : len(s)-len(suffix)]
	parts := splitTopLevel(body)
	c := &CFI{}
	var err error
	switch len(parts) {
	case 1:
		c.rawParent = parts[0]
		if c.Parent, err = parsePath(parts[0]); err != nil {
			return nil, err
		}
	case 3:
		c.IsRange = true
		c.rawParent, c.rawStart, c.rawEnd = parts[0], parts[1], parts[2]
		if c.Parent, err = parsePath(parts[0]); err != nil {
			return nil, err
		}
		if c.Start, err = parsePath(parts[1]); err != nil {
			return nil, err
		}
		if c.End, err = parsePath(parts[2]); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("cfi: expected 1 or 3 components, got %d: %q", len(parts), s)
	}
	return c, nil
}

// splitTopLevel splits on commas outside of bracketed assertions.
func splitTopLevel(s string) []string {
	var parts []string
	depth, last := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '^':
			i++
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}

func parsePath(s string) (Location, error) {
	var loc Location
	indirect := false
	i := 0
	for i < len(s) {
		switch s[i] {
		case '!':
			indirect = true
			i++
		case '/':
			n, next, err := readInt(s, i+1)
			if err != nil {
				return loc, err
			}
			step := Step{Index: n, Indirect: indirect}
			indirect = false
			i = next
			if i < len(s) && s[i] == '[' {
				var assertion string
				assertion, i = readAssertion(s, i)
				step.ID, _, _ = strings.Cut(assertion, ";")
			}
			loc.Steps = append(loc.Steps, step)
		case ':':
			n, next, err := readInt(s, i+1)
			if err != nil {
				return loc, err
			}
			loc.Offset, loc.HasOffset = n, true
			i = next
			if i < len(s) && s[i] == '[' {
				_, i = readAssertion(s, i)
			}
		case '~', '@':
			// Temporal and spatial terminals carry no ordering information here.
			i++
			for i < len(s) && strings.IndexByte("0123456789.:", s[i]) >= 0 {
				i++
			}
		default:
			return loc, fmt.Errorf("cfi: unexpected %q at %d in %q", s[i], i, s)
		}
	}
	return loc, nil
}

func readInt(s string, i int) (int, int, error) {
	j := i
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j == i {
		return 0, i, fmt.Errorf("cfi: expected number at %d in %q", i, s)
	}
	n, err := strconv.Atoi(s[i:j])
	if err != nil {
		return 0, i, fmt.Errorf("cfi: %w", err)
	}
	return n, j, nil
}

// readAssertion reads a bracketed assertion starting at s[i] == '['. It
// returns the unescaped content and the index after the closing bracket.
func readAssertion(s string, i int) (string, int) {
	var b strings.Builder
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '^':
			if j+1 < len(s) {
				j++
				b.WriteByte(s[j])
			}
		case ']':
			return b.String(), j + 1
		default:
			b.WriteByte(s[j])
		}
	}
	return b.String(), len(s)
}

// Split returns the start and end point identifiers of a range. A point
// identifier, or anything that does not parse, is returned as both.
func Split(s string) (start, end string) {
	c, err := Parse(s)
	if err != nil || !c.IsRange {
		return s, s
	}
	return prefix + c.rawParent + c.rawStart + suffix, prefix + c.rawParent + c.rawEnd + suffix
}

// Range builds a range identifier from a shared parent path and the two
// relative sub-paths.
func Range(parent, start, end string) string {
	return prefix + parent + "," + start + "," + end + suffix
}

// Point wraps a path as a point identifier.
func Point(path string) string {
	return prefix + path + suffix
}
