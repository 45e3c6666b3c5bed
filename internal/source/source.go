// Package source fetches the externally supplied snippet list.
//
// Three adapters share one contract:
//
//   - Bundled: the snippet.json compiled into the binary
//   - File:    a JSON file on disk, re-read on every fetch (see Watcher)
//   - HTTP:    a remote JSON document, fetched through a caching, rate limited client
//
// Every adapter returns the raw candidate list. Normalization and merging are
// done by internal/reconcile; a fetch either yields a whole JSON array or fails.
package source

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sakif/snippet-box/internal/apperror"
	"github.com/sakif/snippet-box/internal/reconcile"
)

// BundleTag prefixes fallback ids for candidates that carry no id of their own.
const BundleTag = "bundle"

// BundledName is the source marker stamped onto records imported from the bundle.
const BundledName = "snippet.json"

//go:embed snippet.json
var bundled []byte

// Source supplies candidate snippet lists.
type Source interface {
	// Fetch returns the current candidate list. Failures are SourceUnavailable errors.
	Fetch(ctx context.Context) ([]any, error)
	// Origin names the source for fallback ids and the imported-record marker.
	Origin() reconcile.Origin
}

// =========================================================================
// BUNDLED
// =========================================================================

// Static serves a fixed payload.
type Static struct {
	data   []byte
	origin reconcile.Origin
}

var _ Source = (*Static)(nil)

// Bundled returns the snippet list compiled into the binary.
func Bundled() *Static {
	return NewStatic(bundled, reconcile.Origin{Tag: BundleTag, Name: BundledName})
}

// NewStatic returns a Source that always yields data.
func NewStatic(data []byte, origin reconcile.Origin) *Static {
	return &Static{data: data, origin: origin}
}

func (s *Static) Fetch(ctx context.Context) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.SourceUnavailable(s.origin.Name, err)
	}
	return reconcile.Decode(s.origin.Name, s.data)
}

func (s *Static) Origin() reconcile.Origin { return s.origin }

// =========================================================================
// FILE
// =========================================================================

// File reads a JSON snippet list from disk on every Fetch.
type File struct {
	path   string
	origin reconcile.Origin
}

var _ Source = (*File)(nil)

// NewFile returns a Source reading path. Imported records are marked with the file's base name.
func NewFile(path string) *File {
	return &File{
		path:   path,
		origin: reconcile.Origin{Tag: BundleTag, Name: filepath.Base(path)},
	}
}

func (f *File) Fetch(ctx context.Context) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.SourceUnavailable(f.origin.Name, err)
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, apperror.SourceUnavailable(f.origin.Name, fmt.Errorf("reading %s: %w", f.path, err))
	}
	return reconcile.Decode(f.origin.Name, data)
}

func (f *File) Origin() reconcile.Origin { return f.origin }

// Path returns the file being read.
func (f *File) Path() string { return f.path }
