package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-box/internal/apperror"
	"github.com/sakif/snippet-box/internal/metrics"
	"github.com/sakif/snippet-box/internal/model"
	"github.com/sakif/snippet-box/internal/reconcile"
	"github.com/sakif/snippet-box/internal/repository"
)

// =========================================================================
// MOCK STORE
// =========================================================================
//
// mockStore is an in-memory repository.Store that can be told to fail.
// It counts Set calls so tests can assert "no write happened".

type mockStore struct {
	mu      sync.Mutex
	values  map[string]string
	getErr  error
	setErr  error
	setCall int
}

func newMockStore() *mockStore {
	return &mockStore{values: map[string]string{}}
}

func (m *mockStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mockStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCall++
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *mockStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *mockStore) raw(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}

func (m *mockStore) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCall
}

func (m *mockStore) failSet(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setErr = err
}

func (m *mockStore) failGet(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// persisted decodes the stored collection.
func (m *mockStore) persisted(t *testing.T) model.Collection {
	t.Helper()
	var c model.Collection
	require.NoError(t, json.Unmarshal([]byte(m.raw(repository.KeySnippets)), &c))
	return c
}

// =========================================================================
// MOCK SOURCE
// =========================================================================

type mockSource struct {
	list  []any
	err   error
	calls int
}

func (m *mockSource) Fetch(context.Context) ([]any, error) {
	m.calls++
	return m.list, m.err
}

func (m *mockSource) Origin() reconcile.Origin {
	return reconcile.Origin{Tag: "bundle", Name: "snippet.json"}
}

func candidatesJSON(t *testing.T, raw string) []any {
	t.Helper()
	list, err := reconcile.Decode("test", []byte(raw))
	require.NoError(t, err)
	return list
}

// =========================================================================
// TEST HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestService creates a loaded SnippetService over a mock store seeded with stored.
// Ids are deterministic: snip-1, snip-2, ...
func newTestService(t *testing.T, stored string, opts ...Option) (*SnippetService, *mockStore) {
	t.Helper()
	store := newMockStore()
	if stored != "" {
		store.values[repository.KeySnippets] = stored
	}
	n := 0
	opts = append([]Option{WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("snip-%d", n)
	})}, opts...)

	svc := NewSnippetService(store, discardLogger(), opts...)
	require.NoError(t, svc.Load(context.Background()))
	return svc, store
}

func declineAll(model.Snippet) bool { return false }

// assertInSync checks that memory and store hold the same collection.
func assertInSync(t *testing.T, svc *SnippetService, store *mockStore) {
	t.Helper()
	assert.Equal(t, store.persisted(t), svc.Snippets())
}

// =========================================================================
// LOAD TESTS
// =========================================================================

func TestLoad_MissingKey(t *testing.T) {
	svc, _ := newTestService(t, "")

	assert.Empty(t, svc.Snippets())
	assert.NotNil(t, svc.Snippets())
}

func TestLoad_Malformed(t *testing.T) {
	for _, raw := range []string{`not json`, `{"id":"a"}`, `"string"`, `42`} {
		t.Run(raw, func(t *testing.T) {
			svc, _ := newTestService(t, raw)
			assert.Empty(t, svc.Snippets())
		})
	}
}

func TestLoad_DropsMalformedElements(t *testing.T) {
	svc, _ := newTestService(t, `[{"id":"a","title":"A"}, 42, {"id":"b","title":"B"}]`)

	got := svc.Snippets()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestLoad_LenientElements(t *testing.T) {
	stored := `[null,
		{"id":"a","title":"A","code":"x","localEdited":"yes"},
		{"id":5,"title":7},
		{"title":"no id"},
		{"id":"b","title":"B"}]`
	svc, store := newTestService(t, stored)

	_, err := svc.Add(context.Background(), "new", "")
	require.NoError(t, err)

	got := store.persisted(t)
	require.Len(t, got, 5)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "x", got[0].Code)
	assert.True(t, got[0].LocalEdited)
	assert.Equal(t, "5", got[1].ID)
	assert.Empty(t, got[1].Title)
	assert.Equal(t, "stored-3", got[2].ID)
	assert.Equal(t, "no id", got[2].Title)
	assert.Equal(t, "b", got[3].ID)
	assert.Equal(t, "snip-1", got[4].ID)
	for _, s := range got {
		assert.NotEmpty(t, s.ID)
	}
	assertInSync(t, svc, store)
}

func TestLoad_ReadFailure(t *testing.T) {
	store := newMockStore()
	store.failGet(errors.New("disk gone"))
	svc := NewSnippetService(store, discardLogger())

	err := svc.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrStoreRead))
	assert.Empty(t, svc.Snippets())
}

// =========================================================================
// ADD TESTS
// =========================================================================

func TestAdd_Success(t *testing.T) {
	svc, store := newTestService(t, "")

	snippet, err := svc.Add(context.Background(), "  hello  ", "print('hi')")
	require.NoError(t, err)

	assert.Equal(t, "snip-1", snippet.ID)
	assert.Equal(t, "hello", snippet.Title)
	assert.Equal(t, "print('hi')", snippet.Code)
	assert.True(t, snippet.LocalEdited)
	assertInSync(t, svc, store)
}

func TestAdd_DefaultIDs(t *testing.T) {
	svc := NewSnippetService(newMockStore(), discardLogger())

	a, err := svc.Add(context.Background(), "a", "")
	require.NoError(t, err)
	b, err := svc.Add(context.Background(), "b", "")
	require.NoError(t, err)

	assert.Regexp(t, `^snip-[0-9a-v]{20}$`, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestAdd_AppendsInOrder(t *testing.T) {
	svc, store := newTestService(t, `[{"id":"old","title":"Old","code":"","localEdited":true}]`)

	_, err := svc.Add(context.Background(), "new", "")
	require.NoError(t, err)

	got := store.persisted(t)
	require.Len(t, got, 2)
	assert.Equal(t, "old", got[0].ID)
	assert.Equal(t, "snip-1", got[1].ID)
}

func TestAdd_EmptyTitle(t *testing.T) {
	svc, store := newTestService(t, "")

	_, err := svc.Add(context.Background(), "   ", "code")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "title", appErr.Field)

	assert.Empty(t, svc.Snippets())
	assert.Zero(t, store.writes())
}

func TestAdd_WriteFailureKeepsSnippetInMemory(t *testing.T) {
	svc, store := newTestService(t, "")
	store.failSet(errors.New("quota exceeded"))

	snippet, err := svc.Add(context.Background(), "draft", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrStoreWrite))

	got, ok := svc.Get(snippet.ID)
	require.True(t, ok)
	assert.Equal(t, "draft", got.Title)
	assert.Equal(t, []string{snippet.ID}, svc.Unsaved())
}

func TestAdd_UnsavedCarriedForwardByNextWrite(t *testing.T) {
	svc, store := newTestService(t, "")
	ctx := context.Background()

	store.failSet(errors.New("quota exceeded"))
	first, _ := svc.Add(ctx, "first", "")

	store.failSet(nil)
	second, err := svc.Add(ctx, "second", "")
	require.NoError(t, err)

	got := store.persisted(t)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)
	assert.Empty(t, svc.Unsaved())
	assertInSync(t, svc, store)
}

func TestAdd_ReadFailureAborts(t *testing.T) {
	svc, store := newTestService(t, "")
	store.failGet(errors.New("locked"))

	_, err := svc.Add(context.Background(), "x", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrStoreRead))
	assert.Empty(t, svc.Snippets())
	assert.Zero(t, store.writes())
}

// =========================================================================
// EDIT TITLE TESTS
// =========================================================================

func TestEditTitle_Success(t *testing.T) {
	svc, store := newTestService(t,
		`[{"id":"b1","title":"Bundled","code":"x","localEdited":false,"source":"snippet.json"}]`)

	got, err := svc.EditTitle(context.Background(), "b1", " Mine ")
	require.NoError(t, err)

	assert.Equal(t, model.Snippet{ID: "b1", Title: "Mine", Code: "x", LocalEdited: true}, got)
	assertInSync(t, svc, store)
	assert.NotContains(t, store.raw(repository.KeySnippets), "source")
}

func TestEditTitle_InsertsWhenMissingFromStore(t *testing.T) {
	svc, store := newTestService(t, "")
	ctx := context.Background()

	store.failSet(errors.New("offline"))
	added, _ := svc.Add(ctx, "draft", "code")
	store.failSet(nil)
	require.NoError(t, store.Remove(ctx, repository.KeySnippets))

	_, err := svc.EditTitle(ctx, added.ID, "final")
	require.NoError(t, err)

	got := store.persisted(t)
	require.Len(t, got, 1)
	assert.Equal(t, "final", got[0].Title)
	assert.Equal(t, "code", got[0].Code)
}

func TestEditTitle_NotFound(t *testing.T) {
	svc, store := newTestService(t, "[]")

	_, err := svc.EditTitle(context.Background(), "ghost", "x")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	assert.Zero(t, store.writes())
}

func TestEditTitle_EmptyTitleIsRejected(t *testing.T) {
	svc, store := newTestService(t, `[{"id":"a","title":"Keep","code":"","localEdited":true}]`)

	_, err := svc.EditTitle(context.Background(), "a", "  ")
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	got, _ := svc.Get("a")
	assert.Equal(t, "Keep", got.Title)
	assert.Zero(t, store.writes())
}

// =========================================================================
// SAVE CODE TESTS
// =========================================================================

func TestSaveCode_PersistsMinimalRecord(t *testing.T) {
	svc, store := newTestService(t,
		`[{"id":"b1","title":"Bundled","code":"old","localEdited":false,"source":"snippet.json"}]`)

	_, err := svc.SaveCode(context.Background(), "b1", "new code")
	require.NoError(t, err)

	assert.JSONEq(t,
		`[{"id":"b1","title":"Bundled","code":"new code","localEdited":true}]`,
		store.raw(repository.KeySnippets))
	assertInSync(t, svc, store)
}

func TestSaveCode_EmptyCodeAllowed(t *testing.T) {
	svc, _ := newTestService(t, `[{"id":"a","title":"A","code":"x","localEdited":true}]`)

	got, err := svc.SaveCode(context.Background(), "a", "")
	require.NoError(t, err)
	assert.Equal(t, "", got.Code)
}

func TestSaveCode_NotFound(t *testing.T) {
	svc, _ := newTestService(t, "")

	_, err := svc.SaveCode(context.Background(), "ghost", "x")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestSaveCode_WriteFailure(t *testing.T) {
	svc, store := newTestService(t, `[{"id":"a","title":"A","code":"x","localEdited":true}]`)
	store.failSet(errors.New("full"))

	_, err := svc.SaveCode(context.Background(), "a", "changed")
	assert.True(t, errors.Is(err, apperror.ErrStoreWrite))

	got, _ := svc.Get("a")
	assert.Equal(t, "changed", got.Code)
	assert.Equal(t, []string{"a"}, svc.Unsaved())
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestDelete_Confirmed(t *testing.T) {
	svc, store := newTestService(t,
		`[{"id":"a","title":"A","code":"","localEdited":true},{"id":"b","title":"B","code":"","localEdited":true}]`)

	var asked model.Snippet
	deleted, err := svc.Delete(context.Background(), "a", func(s model.Snippet) bool {
		asked = s
		return true
	})
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, "A", asked.Title)

	_, ok := svc.Get("a")
	assert.False(t, ok)
	assertInSync(t, svc, store)
}

func TestDelete_Declined(t *testing.T) {
	stored := `[{"id":"a","title":"A","code":"","localEdited":true}]`
	svc, store := newTestService(t, stored)

	deleted, err := svc.Delete(context.Background(), "a", declineAll)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Len(t, svc.Snippets(), 1)
	assert.Equal(t, stored, store.raw(repository.KeySnippets))
}

func TestDelete_NilConfirmDeclines(t *testing.T) {
	svc, _ := newTestService(t, `[{"id":"a","title":"A","code":"","localEdited":true}]`)

	deleted, err := svc.Delete(context.Background(), "a", nil)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDelete_UnknownIDIsByteIdenticalNoop(t *testing.T) {
	stored := `[{"id":"a","title":"A","code":"","localEdited":true}]`
	svc, store := newTestService(t, stored)
	before := svc.Snippets()

	confirmCalled := false
	deleted, err := svc.Delete(context.Background(), "ghost", func(model.Snippet) bool {
		confirmCalled = true
		return true
	})
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.False(t, confirmCalled)
	assert.Zero(t, store.writes())
	assert.Equal(t, stored, store.raw(repository.KeySnippets))
	assert.Equal(t, before, svc.Snippets())
}

func TestConfirmMessage(t *testing.T) {
	assert.Equal(t, `Delete snippet "A"? This cannot be undone.`, ConfirmMessage(model.Snippet{Title: "A"}))
	assert.Equal(t, `Delete snippet "(untitled)"? This cannot be undone.`, ConfirmMessage(model.Snippet{}))
}

// =========================================================================
// REFRESH TESTS
// =========================================================================

func TestRefresh_LocalWins(t *testing.T) {
	src := &mockSource{list: candidatesJSON(t,
		`[{"id":"a","title":"Renamed","code":"y"},{"id":"b","title":"New","code":"z"}]`)}
	svc, store := newTestService(t, `[{"id":"a","title":"Hello","code":"x","localEdited":true}]`, WithSource(src))

	res, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.Skipped)
	got := svc.Snippets()
	require.Len(t, got, 2)
	assert.Equal(t, "Hello", got[0].Title)
	assert.Equal(t, model.Snippet{ID: "b", Title: "New", Code: "z", Origin: "snippet.json"}, got[1])
	assertInSync(t, svc, store)
}

func TestRefresh_Idempotent(t *testing.T) {
	src := &mockSource{list: candidatesJSON(t, `[{"id":"a"},{"title":"no id"}]`)}
	svc, store := newTestService(t, "", WithSource(src))
	ctx := context.Background()

	_, err := svc.Refresh(ctx)
	require.NoError(t, err)
	first := store.raw(repository.KeySnippets)

	res, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Imported)
	assert.Equal(t, first, store.raw(repository.KeySnippets))
}

func TestRefresh_SourceFailureChangesNothing(t *testing.T) {
	src := &mockSource{err: apperror.SourceUnavailable("snippet.json", errors.New("404"))}
	stored := `[{"id":"a","title":"A","code":"","localEdited":true}]`
	svc, store := newTestService(t, stored, WithSource(src))

	_, err := svc.Refresh(context.Background())
	assert.True(t, errors.Is(err, apperror.ErrSourceUnavailable))
	assert.Zero(t, store.writes())
	assert.Len(t, svc.Snippets(), 1)
}

func TestRefresh_NoSource(t *testing.T) {
	svc, _ := newTestService(t, "")

	_, err := svc.Refresh(context.Background())
	assert.True(t, errors.Is(err, apperror.ErrSourceUnavailable))
	assert.True(t, errors.Is(err, ErrNoSource))
}

func TestRefresh_WriteFailureKeepsMergedInMemory(t *testing.T) {
	src := &mockSource{list: candidatesJSON(t, `[{"id":"b"}]`)}
	svc, store := newTestService(t, `[]`, WithSource(src))
	store.failSet(errors.New("full"))

	res, err := svc.Refresh(context.Background())
	assert.True(t, errors.Is(err, apperror.ErrStoreWrite))
	assert.Len(t, res.Collection, 1)
	assert.Len(t, svc.Snippets(), 1)
	assert.Equal(t, []string{"b"}, svc.Unsaved())
}

func TestRefresh_PicksUpExternalStoreChanges(t *testing.T) {
	src := &mockSource{list: candidatesJSON(t, `[]`)}
	svc, store := newTestService(t, `[]`, WithSource(src))

	// Another process wrote to the shared store after Load.
	require.NoError(t, store.Set(context.Background(), repository.KeySnippets,
		`[{"id":"other","title":"From elsewhere","code":"","localEdited":true}]`))

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	_, ok := svc.Get("other")
	assert.True(t, ok)
}

// =========================================================================
// CONCURRENCY TESTS
// =========================================================================

func TestConcurrentAdds_NoLostWrites(t *testing.T) {
	store := newMockStore()
	svc := NewSnippetService(store, discardLogger())
	ctx := context.Background()

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Add(ctx, fmt.Sprintf("s%d", i), "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.persisted(t), n)
	assertInSync(t, svc, store)
}

// =========================================================================
// WIDTH TESTS
// =========================================================================

func TestWidth_DefaultAndClamp(t *testing.T) {
	svc, store := newTestService(t, "")
	ctx := context.Background()

	assert.Equal(t, DefaultWidth, svc.Width(ctx))

	tests := []struct {
		in, want int
	}{
		{100, MinWidth},
		{500, 500},
		{5000, MaxWidth},
	}
	for _, tt := range tests {
		got, err := svc.SetWidth(ctx, tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.want, svc.Width(ctx))
		assert.Equal(t, fmt.Sprint(tt.want), store.raw(repository.KeyPanelWidth))
	}
}

func TestWidth_Unreadable(t *testing.T) {
	svc, store := newTestService(t, "")
	ctx := context.Background()

	store.values[repository.KeyPanelWidth] = "wide"
	assert.Equal(t, DefaultWidth, svc.Width(ctx))

	store.values[repository.KeyPanelWidth] = "10"
	assert.Equal(t, MinWidth, svc.Width(ctx))

	store.failGet(errors.New("gone"))
	assert.Equal(t, DefaultWidth, svc.Width(ctx))
}

func TestSetWidth_WriteFailure(t *testing.T) {
	svc, store := newTestService(t, "")
	store.failSet(errors.New("full"))

	_, err := svc.SetWidth(context.Background(), 300)
	assert.True(t, errors.Is(err, apperror.ErrStoreWrite))
}

// =========================================================================
// METRICS / VERSION TESTS
// =========================================================================

func TestMetricsAndVersion(t *testing.T) {
	m := metrics.New()
	svc, _ := newTestService(t, "", WithMetrics(m))
	v0 := svc.Version()

	_, err := svc.Add(context.Background(), "x", "")
	require.NoError(t, err)

	assert.Greater(t, svc.Version(), v0)
}
