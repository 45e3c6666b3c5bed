// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data. There is no inheritance; a
// Collection is just a named slice with a few helper methods attached.
package model

// UntitledPlaceholder is displayed in place of an empty title.
// It is never written into a stored record.
const UntitledPlaceholder = "(untitled)"

// Snippet represents one stored text snippet.
//
// The `json:"..."` tags define the persisted shape. The stored value is a JSON
// array of these objects, for example:
//
//	[{"id":"snip-cv37rs3pp9olc6atsptg","title":"hello","code":"print('hi')","localEdited":true}]
//
// Origin is serialized as "source" and omitted when empty, so a record that was
// created or re-saved locally carries only id, title, code and localEdited.
type Snippet struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Code        string `json:"code"`
	LocalEdited bool   `json:"localEdited"`
	Origin      string `json:"source,omitempty"`
}

// DisplayTitle returns the title, or the placeholder when the title is empty.
func (s Snippet) DisplayTitle() string {
	if s.Title == "" {
		return UntitledPlaceholder
	}
	return s.Title
}

// Imported reports whether the record still carries an external source marker.
func (s Snippet) Imported() bool {
	return s.Origin != ""
}

// Collection is an ordered sequence of snippets, unique by ID.
// Order is display order: existing records keep their position, new ones are appended.
type Collection []Snippet

// Clone returns a copy that shares no backing array with c.
// Snippet holds only value fields, so a shallow copy of the slice is a deep copy.
func (c Collection) Clone() Collection {
	if c == nil {
		return Collection{}
	}
	out := make(Collection, len(c))
	copy(out, c)
	return out
}

// Index returns the position of the record with the given id, or -1.
func (c Collection) Index(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns the record with the given id.
func (c Collection) Find(id string) (Snippet, bool) {
	if i := c.Index(id); i >= 0 {
		return c[i], true
	}
	return Snippet{}, false
}

// IDs returns the set of ids present in the collection, the empty id included.
func (c Collection) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(c))
	for _, s := range c {
		ids[s.ID] = struct{}{}
	}
	return ids
}

// Upsert returns a new collection where the record with snippet.ID is replaced
// in place, or snippet is appended when no such record exists.
func (c Collection) Upsert(snippet Snippet) Collection {
	out := c.Clone()
	if i := out.Index(snippet.ID); i >= 0 {
		out[i] = snippet
		return out
	}
	return append(out, snippet)
}

// Without returns a new collection with every record matching id removed.
func (c Collection) Without(id string) Collection {
	out := make(Collection, 0, len(c))
	for _, s := range c {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}
