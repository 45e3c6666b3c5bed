package reconcile

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-box/internal/apperror"
	"github.com/sakif/snippet-box/internal/model"
)

var bundle = Origin{Tag: "bundle", Name: "snippet.json"}

// candidates decodes a JSON literal the same way a source adapter would.
func candidates(t *testing.T, raw string) []any {
	t.Helper()
	list, err := Decode("test", []byte(raw))
	require.NoError(t, err)
	return list
}

// =========================================================================
// SCENARIOS
// =========================================================================

func TestReconcile_ScenarioA_EmptyPersisted(t *testing.T) {
	got := Reconcile(model.Collection{}, candidates(t, `[{"id":"a","title":"Hello","code":"x"}]`), bundle)

	require.Len(t, got.Collection, 1)
	assert.Equal(t, model.Snippet{ID: "a", Title: "Hello", Code: "x", LocalEdited: false, Origin: "snippet.json"}, got.Collection[0])
	assert.Equal(t, 1, got.Imported)
}

func TestReconcile_ScenarioB_LocalWins(t *testing.T) {
	persisted := model.Collection{{ID: "a", Title: "Hello", Code: "x", LocalEdited: true}}
	c := candidates(t, `[{"id":"a","title":"Renamed","code":"y"},{"id":"b","title":"New","code":"z"}]`)

	got := Reconcile(persisted, c, bundle)

	require.Len(t, got.Collection, 2)
	assert.Equal(t, persisted[0], got.Collection[0])
	assert.Equal(t, "b", got.Collection[1].ID)
	assert.Equal(t, "New", got.Collection[1].Title)
	assert.Equal(t, "z", got.Collection[1].Code)
	assert.False(t, got.Collection[1].LocalEdited)
	assert.Equal(t, 1, got.Skipped)
}

// =========================================================================
// PROPERTIES
// =========================================================================

func TestReconcile_Idempotent(t *testing.T) {
	persisted := model.Collection{
		{ID: "local-1", Title: "mine", Code: "1", LocalEdited: true},
		{ID: "b", Title: "old import", Code: "2"},
	}
	c := candidates(t, `[{"id":"b","title":"new"},{"title":"no id"},{"id":"c","code":"3"},42,null]`)

	once := Reconcile(persisted, c, bundle)
	twice := Reconcile(once.Collection, c, bundle)

	assert.Equal(t, once.Collection, twice.Collection)
	assert.Zero(t, twice.Imported)
}

func TestReconcile_Uniqueness(t *testing.T) {
	c := candidates(t, `[{"id":"dup"},{"id":"dup"},{"id":"bundle-3"},{"title":"x"}]`)

	got := Reconcile(model.Collection{{ID: "dup", LocalEdited: true}}, c, bundle)

	seen := map[string]bool{}
	for _, s := range got.Collection {
		assert.False(t, seen[s.ID], "duplicate id %q", s.ID)
		seen[s.ID] = true
	}
}

func TestReconcile_EmptyIDCountsAsPresent(t *testing.T) {
	t.Run("imported empty id is not imported again", func(t *testing.T) {
		c := candidates(t, `[{"id":"","title":"blank"}]`)

		once := Reconcile(nil, c, bundle)
		twice := Reconcile(once.Collection, c, bundle)

		require.Len(t, once.Collection, 1)
		assert.Equal(t, 1, once.Imported)
		assert.Equal(t, once.Collection, twice.Collection)
		assert.Zero(t, twice.Imported)
		assert.Equal(t, 1, twice.Skipped)
	})

	t.Run("persisted empty id shadows candidate", func(t *testing.T) {
		persisted := model.Collection{{ID: "", Title: "mine", LocalEdited: true}}

		got := Reconcile(persisted, candidates(t, `[{"id":"","title":"theirs"}]`), bundle)

		require.Len(t, got.Collection, 1)
		assert.Equal(t, persisted[0], got.Collection[0])
		assert.Equal(t, 1, got.Skipped)
	})
}

func TestReconcile_FallbackIDsDeterministic(t *testing.T) {
	raw := `[{"title":"first"},{"id":7,"title":"numeric id"},{}]`

	a := Reconcile(nil, candidates(t, raw), bundle)
	b := Reconcile(nil, candidates(t, raw), bundle)

	require.Len(t, a.Collection, 3)
	assert.Equal(t, a.Collection, b.Collection)
	assert.Equal(t, "bundle-0", a.Collection[0].ID)
	assert.Equal(t, "bundle-1", a.Collection[1].ID)
	assert.Equal(t, "bundle-2", a.Collection[2].ID)
}

func TestReconcile_DoesNotMutateInput(t *testing.T) {
	persisted := make(model.Collection, 1, 8)
	persisted[0] = model.Snippet{ID: "a", Title: "A"}
	before, _ := json.Marshal(persisted)

	Reconcile(persisted, candidates(t, `[{"id":"b"}]`), bundle)

	after, _ := json.Marshal(persisted)
	assert.JSONEq(t, string(before), string(after))
	assert.Equal(t, 1, len(persisted))
	assert.Equal(t, "", persisted[:2][1].ID, "backing array was written through")
}

// =========================================================================
// NORMALIZATION
// =========================================================================

func TestNormalize_Fallbacks(t *testing.T) {
	got := Normalize(candidates(t, `[{"id":"x","title":5,"code":["nope"]},"string item"]`), bundle)

	require.Len(t, got, 2)
	assert.Equal(t, model.Snippet{ID: "x", Title: "Snippet 1", Code: "", Origin: "snippet.json"}, got[0])
	assert.Equal(t, model.Snippet{ID: "bundle-1", Title: "Snippet 2", Code: "", Origin: "snippet.json"}, got[1])
}

func TestNormalize_KeepsEmptyStrings(t *testing.T) {
	got := Normalize(candidates(t, `[{"id":"","title":"","code":""}]`), bundle)

	require.Len(t, got, 1)
	assert.Equal(t, "", got[0].ID)
	assert.Equal(t, "", got[0].Title)
}

// =========================================================================
// DECODE
// =========================================================================

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", `[{"id":`},
		{"object instead of array", `{"id":"a"}`},
		{"null", `null`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode("bundle", []byte(tt.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrSourceUnavailable), "error = %v", err)
		})
	}
}

func TestDecode_EmptyArray(t *testing.T) {
	got, err := Decode("bundle", []byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, got)
}
