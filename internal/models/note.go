package models

// Note is a highlight or a bookmark anchored at an EPUB CFI range.
// Bookmarks share the shape; only the list they live in differs.
type Note struct {
	CFI        string `json:"cfi"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Page       int    `json:"page"`
	Text       string `json:"text,omitempty"`
	Annotation string `json:"annotation,omitempty"`
	Modified   int64  `json:"modified"`
	// Removed is the deletion timestamp; zero means live.
	Removed int64 `json:"removed,omitempty"`
}

// Tombstones maps a note locator to the time it was deleted.
type Tombstones map[string]int64

// Record stores ts for cfi unless a later deletion is already known.
func (t Tombstones) Record(cfi string, ts int64) {
	if cur, ok := t[cfi]; !ok || ts > cur {
		t[cfi] = ts
	}
}

// Clone returns a copy of t. A nil map clones to an empty one.
func (t Tombstones) Clone() Tombstones {
	out := make(Tombstones, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
