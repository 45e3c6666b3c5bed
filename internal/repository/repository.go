// Package repository defines the persistent store contract.
//
// The store is a plain string key/value map. The snippet engine keeps its whole
// collection as one JSON array under KeySnippets and the panel width as
// integer text under KeyPanelWidth. Backends live in the sub-packages:
//
//	repository/sqlite   modernc sqlite, schema managed by golang-migrate
//	repository/badger   embedded badger v3, on disk or in memory
//	repository/memory   a map behind a mutex, for tests and throwaway runs
package repository

import "context"

// Storage keys.
const (
	KeySnippets   = "snippetbox.snippets"
	KeyPanelWidth = "snippetbox.panel_width"
)

// Store is a string key/value store.
//
// Get reports ok=false with a nil error for a key that has never been set.
// Any error from Get or Set is a backend failure; callers decide whether it is fatal.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
