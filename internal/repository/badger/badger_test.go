package badger

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-box/internal/repository"
)

func newTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_InMemoryRoundTrip(t *testing.T) {
	s := newTestStore(t, "")
	ctx := context.Background()

	_, ok, err := s.Get(ctx, repository.KeySnippets)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, repository.KeySnippets, `[{"id":"a"}]`))
	value, ok, err := s.Get(ctx, repository.KeySnippets)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"a"}]`, value)

	require.NoError(t, s.Remove(ctx, repository.KeySnippets))
	_, ok, err = s.Get(ctx, repository.KeySnippets)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_RemoveMissingKey(t *testing.T) {
	s := newTestStore(t, "")

	assert.NoError(t, s.Remove(context.Background(), "never-set"))
}

func TestStore_PersistsOnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, repository.KeyPanelWidth, "512"))
	require.NoError(t, s.Close())

	reopened := newTestStore(t, dir)
	value, ok, err := reopened.Get(ctx, repository.KeyPanelWidth)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "512", value)
}
