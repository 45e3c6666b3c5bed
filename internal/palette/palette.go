// Package palette implements the command/search palette: the candidate list,
// its filter, and the open/query/navigate state machine.
//
// State is a plain value. Every transition returns a new State and leaves the
// receiver untouched, so hosts can keep the current value wherever they like
// and tests can compare states with ==-style assertions.
package palette

import (
	"strings"

	"github.com/sakif/snippet-box/internal/model"
)

// MaxResults caps the filtered list.
const MaxResults = 200

// Kind distinguishes the two candidate variants.
type Kind string

const (
	KindCommand Kind = "command"
	KindSnippet Kind = "snippet"
)

// Command ids. The double underscores keep them out of the snippet id space.
const (
	CommandAdd     = "__add__"
	CommandRefresh = "__refresh__"
)

// Snippet hints.
const (
	HintBundled = "bundled"
	HintLocal   = "local"
)

// Candidate is one palette row: a fixed Command or a reference to a snippet.
type Candidate struct {
	Kind  Kind   `json:"kind"`
	ID    string `json:"id"`
	Title string `json:"title"`
	Hint  string `json:"hint"`
}

// IsCommand reports whether c is a fixed command rather than a snippet reference.
func (c Candidate) IsCommand() bool { return c.Kind == KindCommand }

// Commands returns the fixed command set, in display order.
func Commands() []Candidate {
	return []Candidate{
		{Kind: KindCommand, ID: CommandAdd, Title: "Add snippet", Hint: "Create a new snippet"},
		{Kind: KindCommand, ID: CommandRefresh, Title: "Refresh snippets", Hint: "Reload and merge packaged snippets"},
	}
}

// Build returns the commands followed by one snippet reference per record, in collection order.
func Build(collection model.Collection) []Candidate {
	out := Commands()
	for _, s := range collection {
		out = append(out, Candidate{
			Kind:  KindSnippet,
			ID:    s.ID,
			Title: s.DisplayTitle(),
			Hint:  hintFor(s),
		})
	}
	return out
}

func hintFor(s model.Snippet) string {
	switch {
	case s.Imported():
		return HintBundled
	case s.LocalEdited:
		return HintLocal
	default:
		return ""
	}
}

// Filter keeps candidates whose title or hint contains query, case-insensitively.
// The query is trimmed first; an empty query keeps everything. Order is preserved
// and the result holds at most MaxResults entries.
//
// This is a linear substring match, not a fuzzy ranker: the order a user sees
// is always the Build order.
func Filter(candidates []Candidate, query string) []Candidate {
	q := strings.ToLower(strings.TrimSpace(query))

	out := make([]Candidate, 0, min(len(candidates), MaxResults))
	for _, c := range candidates {
		if len(out) == MaxResults {
			break
		}
		if q == "" ||
			strings.Contains(strings.ToLower(c.Title), q) ||
			strings.Contains(strings.ToLower(c.Hint), q) {
			out = append(out, c)
		}
	}
	return out
}
