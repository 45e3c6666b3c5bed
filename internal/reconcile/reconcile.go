// Package reconcile merges a persisted snippet collection with a freshly
// fetched external candidate list.
//
// THE MERGE RULE:
// The output is every persisted record, unchanged and in its existing order,
// followed by each normalized candidate whose id is not already present.
// A candidate that collides with an existing id is dropped, so the persisted
// (possibly locally edited) version always wins. Running the same candidate
// list against its own output therefore changes nothing.
//
// Everything here is a pure function over values. Persisting the result is
// the caller's job (see internal/service).
package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/snippet-box/internal/apperror"
	"github.com/sakif/snippet-box/internal/model"
)

// Origin identifies the external source a candidate list came from.
//
// Tag prefixes fallback ids ("bundle-0", "bundle-1", ...). Name is stamped
// onto every imported record as its source marker.
type Origin struct {
	Tag  string
	Name string
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	Collection model.Collection
	Imported   int // candidates appended
	Skipped    int // candidates dropped because their id was already present
}

// Normalize converts a loosely typed candidate list into snippet records.
//
// For the candidate at position i:
//   - id is the candidate's "id" if it is a string, else "<tag>-<i>"
//   - title is the candidate's "title" if it is a string, else "Snippet <i+1>"
//   - code is the candidate's "code" if it is a string, else ""
//
// Items that are not JSON objects get every fallback.
func Normalize(candidates []any, origin Origin) model.Collection {
	out := make(model.Collection, 0, len(candidates))
	for i, item := range candidates {
		fields, _ := item.(map[string]any)

		id, ok := fields["id"].(string)
		if !ok {
			id = FallbackID(origin.Tag, i)
		}
		title, ok := fields["title"].(string)
		if !ok {
			title = "Snippet " + strconv.Itoa(i+1)
		}
		code, _ := fields["code"].(string)

		out = append(out, model.Snippet{
			ID:          id,
			Title:       title,
			Code:        code,
			LocalEdited: false,
			Origin:      origin.Name,
		})
	}
	return out
}

// FallbackID is the deterministic id given to the candidate at position i when it has none.
func FallbackID(tag string, i int) string {
	return tag + "-" + strconv.Itoa(i)
}

// Reconcile merges candidates into persisted and returns a new collection.
// persisted is never modified.
//
// Ids appended earlier in the same pass count as present, so a candidate list
// that repeats an id cannot produce a duplicate.
func Reconcile(persisted model.Collection, candidates []any, origin Origin) Result {
	merged := persisted.Clone()
	seen := merged.IDs()

	var res Result
	for _, snippet := range Normalize(candidates, origin) {
		if _, dup := seen[snippet.ID]; dup {
			res.Skipped++
			continue
		}
		seen[snippet.ID] = struct{}{}
		merged = append(merged, snippet)
		res.Imported++
	}
	res.Collection = merged
	return res
}

// ErrNotArray is the cause reported when a source payload decodes but is not a JSON array.
var ErrNotArray = errors.New("payload is not a JSON array")

// Decode parses a raw source payload into a candidate list.
// Any payload that is not a JSON array is a SourceUnavailable error.
func Decode(origin string, data []byte) ([]any, error) {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, apperror.SourceUnavailable(origin, fmt.Errorf("decoding payload: %w", err))
	}
	list, ok := payload.([]any)
	if !ok {
		return nil, apperror.SourceUnavailable(origin, ErrNotArray)
	}
	return list, nil
}
