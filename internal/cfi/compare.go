package cfi

import "strings"

// Compare orders two identifiers by their start point and returns -1, 0 or 1.
// Range ends are never consulted. Identifiers that fail to parse sort after
// every valid one and are ordered bytewise among themselves.
func Compare(a, b string) int {
	ca, errA := Parse(a)
	cb, errB := Parse(b)
	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return 1
	case errB != nil:
		return -1
	}
	return CompareLocations(ca.StartLocation(), cb.StartLocation())
}

// CompareLocations orders two points in document order. A location that is
// a strict ancestor of the other sorts first.
func CompareLocations(a, b Location) int {
	n := min(len(a.Steps), len(b.Steps))
	for i := 0; i < n; i++ {
		if d := cmpInt(a.Steps[i].Index, b.Steps[i].Index); d != 0 {
			return d
		}
	}
	if d := cmpInt(len(a.Steps), len(b.Steps)); d != 0 {
		return d
	}
	return cmpInt(a.Offset, b.Offset)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
