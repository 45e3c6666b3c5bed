// Package service contains the snippet engine's business logic.
//
// THE LAYERS:
//
//	Hosts (HTTP handler, CLI, terminal palette) → parse input, render output
//	SnippetService                                → validates, merges, persists
//	repository.Store / source.Source              → raw bytes in and out
//
// SnippetService owns two copies of the collection: the in-memory one every
// host reads, and the persisted one under repository.KeySnippets. Every
// mutating operation runs the same cycle while holding a single lock:
//
//  1. re-read the persisted collection
//  2. re-apply changes whose earlier write failed
//  3. apply the operation as a pure transformation
//  4. write the whole collection back and adopt it as the in-memory copy
//
// Holding the lock for the whole cycle means two concurrent operations in one
// process can never overwrite each other's result. Writers in other processes
// sharing the same store are still last-write-wins.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/snippet-box/internal/apperror"
	"github.com/sakif/snippet-box/internal/metrics"
	"github.com/sakif/snippet-box/internal/model"
	"github.com/sakif/snippet-box/internal/reconcile"
	"github.com/sakif/snippet-box/internal/repository"
	"github.com/sakif/snippet-box/internal/source"
)

// Panel width preference bounds, in pixels.
const (
	DefaultWidth = 420
	MinWidth     = 220
	MaxWidth     = 900
)

// IDPrefix starts every locally created snippet id.
const IDPrefix = "snip-"

// ErrNoSource is the cause reported by Refresh when no source is configured.
var ErrNoSource = errors.New("no snippet source configured")

// changeKind says how a queued change is re-applied to a freshly read collection.
type changeKind int

const (
	changeUpsert changeKind = iota // replace in place, or append
	changeInsert                   // append only if the id is absent
	changeDelete
)

// change is one record-level edit. Changes whose write failed stay queued
// and are replayed on top of the persisted collection by the next write.
type change struct {
	kind    changeKind
	id      string
	snippet model.Snippet
}

func (c change) apply(to model.Collection) model.Collection {
	switch c.kind {
	case changeDelete:
		return to.Without(c.id)
	case changeInsert:
		if to.Index(c.id) >= 0 {
			return to
		}
		return to.Upsert(c.snippet)
	default:
		return to.Upsert(c.snippet)
	}
}

// Option configures a SnippetService.
type Option func(*SnippetService)

// WithSource sets the external snippet source used by Refresh.
func WithSource(src source.Source) Option {
	return func(s *SnippetService) { s.source = src }
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *SnippetService) { s.metrics = m }
}

// WithIDGenerator replaces the default "snip-<xid>" id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *SnippetService) { s.newID = fn }
}

// SnippetService coordinates the in-memory collection, the store and the source.
type SnippetService struct {
	store   repository.Store
	source  source.Source
	logger  *slog.Logger
	metrics *metrics.Metrics
	newID   func() string

	// writeMu serializes every read-modify-write cycle.
	writeMu sync.Mutex

	// stateMu guards the fields below, so readers never wait on a store round trip.
	stateMu  sync.RWMutex
	snippets model.Collection
	pending  []change
	version  uint64
}

// NewSnippetService creates a SnippetService with an empty in-memory collection.
// Call Load to populate it from the store.
func NewSnippetService(store repository.Store, logger *slog.Logger, opts ...Option) *SnippetService {
	s := &SnippetService{
		store:    store,
		logger:   logger,
		snippets: model.Collection{},
		newID:    func() string { return IDPrefix + xid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =========================================================================
// READS
// =========================================================================

// Snippets returns a copy of the in-memory collection.
func (s *SnippetService) Snippets() model.Collection {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.snippets.Clone()
}

// Get returns the in-memory record with the given id.
func (s *SnippetService) Get(id string) (model.Snippet, bool) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.snippets.Find(id)
}

// Version increases every time the in-memory collection is replaced.
func (s *SnippetService) Version() uint64 {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.version
}

// Unsaved returns the ids changed in memory whose last store write failed, in change order.
func (s *SnippetService) Unsaved() []string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return unsavedIDs(s.pending)
}

func unsavedIDs(pending []change) []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, c := range pending {
		if _, ok := seen[c.id]; ok {
			continue
		}
		seen[c.id] = struct{}{}
		ids = append(ids, c.id)
	}
	return ids
}

// =========================================================================
// LOAD
// =========================================================================

// Load replaces the in-memory collection with the persisted one.
//
// A missing key or malformed stored value yields an empty collection. A store
// read failure also yields an empty collection, and is returned so the host
// can report it.
func (s *SnippetService) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	collection, err := s.read(ctx)
	if err != nil {
		s.logger.Error("failed to load snippets", slog.String("error", err.Error()))
		collection = model.Collection{}
	}

	s.stateMu.Lock()
	s.snippets = collection
	s.pending = nil
	s.version++
	s.stateMu.Unlock()
	s.observeState()

	s.logger.Info("snippets loaded", slog.Int("count", len(collection)))
	return err
}

// read fetches and decodes the persisted collection.
// Only a store failure is an error; malformed data is logged and treated as empty.
func (s *SnippetService) read(ctx context.Context) (model.Collection, error) {
	raw, ok, err := s.store.Get(ctx, repository.KeySnippets)
	if err != nil {
		return nil, apperror.StoreReadFailed(repository.KeySnippets, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return model.Collection{}, nil
	}
	return s.decode(raw), nil
}

// decode parses a stored collection. A value that is not a JSON array at all
// becomes empty. Elements that are not objects (null included) are dropped one
// by one; objects are read field by field, so a mistyped field loses only
// that field and never the record.
func (s *SnippetService) decode(raw string) model.Collection {
	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logger.Warn("persisted snippets are malformed, starting empty",
			slog.String("error", apperror.MalformedData(repository.KeySnippets, err).Error()),
		)
		return model.Collection{}
	}

	out := make(model.Collection, 0, len(items))
	for i, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			s.logger.Warn("dropping persisted element that is not a snippet object", slog.Int("index", i))
			continue
		}
		out = append(out, storedSnippet(fields, i))
	}
	return out
}

// storedFallbackTag prefixes the id given to a stored record that has none.
const storedFallbackTag = "stored"

// storedSnippet reads one persisted object. A numeric id is kept as its text;
// a missing one gets a fallback id so the record stays addressable.
// localEdited follows JSON truthiness for non-boolean values.
func storedSnippet(fields map[string]any, i int) model.Snippet {
	var snippet model.Snippet

	switch id := fields["id"].(type) {
	case string:
		snippet.ID = id
	case float64:
		snippet.ID = strconv.FormatFloat(id, 'f', -1, 64)
	}
	if snippet.ID == "" {
		snippet.ID = reconcile.FallbackID(storedFallbackTag, i)
	}
	snippet.Title, _ = fields["title"].(string)
	snippet.Code, _ = fields["code"].(string)
	snippet.Origin, _ = fields["source"].(string)

	switch v := fields["localEdited"].(type) {
	case bool:
		snippet.LocalEdited = v
	case string:
		snippet.LocalEdited = v != ""
	case float64:
		snippet.LocalEdited = v != 0
	}
	return snippet
}

func (s *SnippetService) write(ctx context.Context, collection model.Collection) error {
	if collection == nil {
		collection = model.Collection{}
	}
	data, err := json.Marshal(collection)
	if err != nil {
		return apperror.StoreWriteFailed(repository.KeySnippets, err)
	}
	if err := s.store.Set(ctx, repository.KeySnippets, string(data)); err != nil {
		return apperror.StoreWriteFailed(repository.KeySnippets, err)
	}
	return nil
}

// =========================================================================
// MUTATION CYCLE
// =========================================================================

// base re-reads the persisted collection and replays queued changes on it.
// Must be called with writeMu held.
func (s *SnippetService) base(ctx context.Context) (model.Collection, error) {
	persisted, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	s.stateMu.RLock()
	pending := s.pending
	s.stateMu.RUnlock()
	for _, c := range pending {
		persisted = c.apply(persisted)
	}
	return persisted, nil
}

// commit writes next and adopts it in memory. When the write fails, next is
// still adopted and changes are queued for the next successful write.
// Must be called with writeMu held.
func (s *SnippetService) commit(ctx context.Context, next model.Collection, changes ...change) error {
	err := s.write(ctx, next)

	s.stateMu.Lock()
	s.snippets = next
	s.version++
	if err != nil {
		s.pending = append(s.pending, changes...)
	} else {
		s.pending = nil
	}
	s.stateMu.Unlock()
	s.observeState()

	return err
}

// lookup finds id in the persisted collection first, then in memory.
func (s *SnippetService) lookup(persisted model.Collection, id string) (model.Snippet, bool) {
	if snippet, ok := persisted.Find(id); ok {
		return snippet, true
	}
	return s.Get(id)
}

// =========================================================================
// LOCAL EDITS
// =========================================================================

// Add creates a locally edited snippet and appends it to the collection.
//
// On a store write failure the snippet is returned together with the error:
// it exists in memory and is queued for the next write.
func (s *SnippetService) Add(ctx context.Context, title, code string) (model.Snippet, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Snippet{}, apperror.ValidationFailed("title", "snippet title is required")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	persisted, err := s.base(ctx)
	if err != nil {
		s.fail("add", err)
		return model.Snippet{}, err
	}

	snippet := model.Snippet{
		ID:          s.newID(),
		Title:       title,
		Code:        code,
		LocalEdited: true,
	}
	c := change{kind: changeUpsert, id: snippet.ID, snippet: snippet}
	if err := s.commit(ctx, c.apply(persisted), c); err != nil {
		s.fail("add", err, slog.String("id", snippet.ID))
		return snippet, err
	}

	s.ok("add")
	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("title", snippet.Title),
	)
	return snippet, nil
}

// EditTitle replaces a snippet's title and marks it locally edited.
// The source marker is cleared; code is untouched. A record missing from the
// persisted copy is inserted there.
func (s *SnippetService) EditTitle(ctx context.Context, id, title string) (model.Snippet, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Snippet{}, apperror.ValidationFailed("title", "snippet title is required")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	persisted, err := s.base(ctx)
	if err != nil {
		s.fail("edit_title", err)
		return model.Snippet{}, err
	}

	snippet, ok := s.lookup(persisted, id)
	if !ok {
		return model.Snippet{}, apperror.NotFound("snippet", id)
	}
	snippet.Title = title
	snippet.LocalEdited = true
	snippet.Origin = ""

	c := change{kind: changeUpsert, id: id, snippet: snippet}
	if err := s.commit(ctx, c.apply(persisted), c); err != nil {
		s.fail("edit_title", err, slog.String("id", id))
		return snippet, err
	}

	s.ok("edit_title")
	s.logger.Info("snippet title updated", slog.String("id", id), slog.String("title", title))
	return snippet, nil
}

// SaveCode replaces a snippet's code. The persisted record becomes exactly
// {id, title, code, localEdited: true}, and memory mirrors it.
func (s *SnippetService) SaveCode(ctx context.Context, id, code string) (model.Snippet, error) {
	if strings.TrimSpace(id) == "" {
		return model.Snippet{}, apperror.ValidationFailed("id", "snippet ID is required")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	persisted, err := s.base(ctx)
	if err != nil {
		s.fail("save_code", err)
		return model.Snippet{}, err
	}

	existing, ok := s.lookup(persisted, id)
	if !ok {
		return model.Snippet{}, apperror.NotFound("snippet", id)
	}
	snippet := model.Snippet{
		ID:          existing.ID,
		Title:       existing.Title,
		Code:        code,
		LocalEdited: true,
	}

	c := change{kind: changeUpsert, id: id, snippet: snippet}
	if err := s.commit(ctx, c.apply(persisted), c); err != nil {
		s.fail("save_code", err, slog.String("id", id))
		return snippet, err
	}

	s.ok("save_code")
	s.logger.Info("snippet code saved", slog.String("id", id), slog.Int("bytes", len(code)))
	return snippet, nil
}

// Confirm is asked before a deletion. Returning false cancels it.
type Confirm func(model.Snippet) bool

// ConfirmMessage is the question a host should put to the user before deleting snippet.
func ConfirmMessage(snippet model.Snippet) string {
	return `Delete snippet "` + snippet.DisplayTitle() + `"? This cannot be undone.`
}

// Delete removes a snippet once confirm approves it.
//
// deleted is false, with no store write and a nil error, when the id is
// unknown or confirm declines. confirm runs before the write lock is taken, so
// a slow interactive prompt does not hold up other operations. A nil confirm
// declines.
func (s *SnippetService) Delete(ctx context.Context, id string, confirm Confirm) (deleted bool, err error) {
	snippet, ok := s.Get(id)
	if !ok {
		persisted, err := s.read(ctx)
		if err != nil {
			return false, err
		}
		if snippet, ok = persisted.Find(id); !ok {
			return false, nil
		}
	}
	if confirm == nil || !confirm(snippet) {
		s.logger.Debug("snippet delete declined", slog.String("id", id))
		return false, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	persisted, err := s.base(ctx)
	if err != nil {
		s.fail("delete", err)
		return false, err
	}
	if _, inMemory := s.Get(id); !inMemory && persisted.Index(id) < 0 {
		// Removed by someone else while confirm was open.
		return false, nil
	}

	c := change{kind: changeDelete, id: id}
	if err := s.commit(ctx, c.apply(persisted), c); err != nil {
		s.fail("delete", err, slog.String("id", id))
		return true, err
	}

	s.ok("delete")
	s.logger.Info("snippet deleted", slog.String("id", id))
	return true, nil
}

// =========================================================================
// REFRESH
// =========================================================================

// Refresh fetches the external list and merges it into the persisted collection.
//
// A fetch failure changes nothing. A write failure keeps the merged result in
// memory and queues the imported records for the next write.
func (s *SnippetService) Refresh(ctx context.Context) (reconcile.Result, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if s.source == nil {
		err := apperror.SourceUnavailable("none", ErrNoSource)
		s.fail("refresh", err)
		return reconcile.Result{}, err
	}

	// Fetch outside the lock: a slow remote must not block local edits.
	candidates, err := s.source.Fetch(ctx)
	if err != nil {
		s.fail("refresh", err, slog.String("source", s.source.Origin().Name))
		return reconcile.Result{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	persisted, err := s.base(ctx)
	if err != nil {
		s.fail("refresh", err)
		return reconcile.Result{}, err
	}

	res := reconcile.Reconcile(persisted, candidates, s.source.Origin())

	imported := res.Collection[len(persisted):]
	changes := make([]change, 0, len(imported))
	for _, snippet := range imported {
		changes = append(changes, change{kind: changeInsert, id: snippet.ID, snippet: snippet})
	}

	if err := s.commit(ctx, res.Collection, changes...); err != nil {
		s.fail("refresh", err)
		return res, err
	}

	s.ok("refresh")
	if s.metrics != nil {
		s.metrics.RefreshImported.Add(float64(res.Imported))
	}
	s.logger.Info("snippets merged",
		slog.String("source", s.source.Origin().Name),
		slog.Int("total", len(res.Collection)),
		slog.Int("imported", res.Imported),
		slog.Int("skipped", res.Skipped),
	)
	return res, nil
}

// =========================================================================
// PANEL WIDTH
// =========================================================================

// ClampWidth forces w into [MinWidth, MaxWidth].
func ClampWidth(w int) int {
	return max(MinWidth, min(MaxWidth, w))
}

// Width returns the stored panel width, or DefaultWidth when it is missing or unreadable.
func (s *SnippetService) Width(ctx context.Context) int {
	raw, ok, err := s.store.Get(ctx, repository.KeyPanelWidth)
	if err != nil {
		s.logger.Warn("failed to read panel width", slog.String("error", err.Error()))
		return DefaultWidth
	}
	if !ok {
		return DefaultWidth
	}
	w, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		s.logger.Warn("stored panel width is malformed",
			slog.String("value", raw),
			slog.String("error", err.Error()),
		)
		return DefaultWidth
	}
	return ClampWidth(w)
}

// SetWidth clamps and stores the panel width, returning the value stored.
func (s *SnippetService) SetWidth(ctx context.Context, w int) (int, error) {
	w = ClampWidth(w)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Set(ctx, repository.KeyPanelWidth, strconv.Itoa(w)); err != nil {
		werr := apperror.StoreWriteFailed(repository.KeyPanelWidth, err)
		s.fail("set_width", werr)
		return w, werr
	}
	s.ok("set_width")
	return w, nil
}

// =========================================================================
// INSTRUMENTATION
// =========================================================================

func (s *SnippetService) ok(op string) {
	if s.metrics != nil {
		s.metrics.ObserveOp(op, nil)
	}
}

func (s *SnippetService) fail(op string, err error, attrs ...slog.Attr) {
	if s.metrics != nil {
		s.metrics.ObserveOp(op, err)
	}
	args := []any{slog.String("op", op), slog.String("error", err.Error())}
	for _, a := range attrs {
		args = append(args, a)
	}
	s.logger.Error("snippet operation failed", args...)
}

func (s *SnippetService) observeState() {
	if s.metrics == nil {
		return
	}
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	s.metrics.Snippets.Set(float64(len(s.snippets)))
	s.metrics.Unsaved.Set(float64(len(unsavedIDs(s.pending))))
}
