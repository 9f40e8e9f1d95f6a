// Package merge reconciles two replicas of a book's reading state.
//
// Everything here is pure: callers load both documents, merge, and persist
// the result themselves.
package merge

import (
	"slices"

	"github.com/starford/lectern/internal/cfi"
	"github.com/starford/lectern/internal/models"
)

// Notes merges two lists sorted by start locator into one sorted list.
//
// The most recently touched version of a locator wins. Entries carrying a
// removal timestamp are never emitted; their deletion time is recorded in
// removed, and any version of the same locator modified at or before that time
// is dropped. removed is written to and must not be nil. Neither input slice is
// modified.
func Notes(local, remote []models.Note, removed models.Tombstones) []models.Note {
	out := make([]models.Note, 0, len(local)+len(remote))
	var lastTomb string
	haveTomb := false

	i, j := 0, 0
	for i < len(local) || j < len(remote) {
		var pick models.Note
		if takeLocal(headAt(local, i), headAt(remote, j)) {
			pick = local[i]
			i++
		} else {
			pick = remote[j]
			j++
		}

		if pick.Removed != 0 {
			removed.Record(pick.CFI, pick.Removed)
			lastTomb, haveTomb = pick.CFI, true
			if n := len(out); n > 0 && out[n-1].CFI == pick.CFI && out[n-1].Modified <= removed[pick.CFI] {
				out = out[:n-1]
			}
			continue
		}
		if haveTomb && lastTomb == pick.CFI && removed[pick.CFI] >= pick.Modified {
			continue
		}
		if n := len(out); n > 0 && cfi.Compare(startOf(out[n-1]), startOf(pick)) == 0 {
			out[n-1].Modified = max(out[n-1].Modified, pick.Modified)
			continue
		}
		if ts, ok := removed[pick.CFI]; ok && ts >= pick.Modified {
			continue
		}
		out = append(out, pick)
	}
	return out
}

// Sort orders notes by start locator in place, keeping the relative order of
// entries that share a start. Lists edited outside the merge (a client upload,
// a hand-edited config.json) must go through Sort before Notes.
func Sort(notes []models.Note) {
	slices.SortStableFunc(notes, func(a, b models.Note) int {
		return cfi.Compare(startOf(a), startOf(b))
	})
}

func headAt(list []models.Note, i int) *models.Note {
	if i >= len(list) {
		return nil
	}
	return &list[i]
}

// takeLocal reports whether the local head is emitted before the remote one.
// On equal locators the newer entry goes first and local wins ties.
func takeLocal(l, r *models.Note) bool {
	c := compareHeads(l, r)
	if c != 0 {
		return c < 0
	}
	return touched(*l) >= touched(*r)
}

// compareHeads orders two list heads by start locator. A nil head belongs to
// an exhausted list and sorts after everything.
func compareHeads(a, b *models.Note) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return cfi.Compare(startOf(*a), startOf(*b))
}

func startOf(n models.Note) string {
	if n.Start != "" {
		return n.Start
	}
	start, _ := cfi.Split(n.CFI)
	return start
}

func touched(n models.Note) int64 {
	return max(n.Modified, n.Removed)
}
