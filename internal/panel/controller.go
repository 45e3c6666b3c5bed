package panel

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sakif/snippet-box/internal/apperror"
	"github.com/sakif/snippet-box/internal/clipboard"
	"github.com/sakif/snippet-box/internal/model"
	"github.com/sakif/snippet-box/internal/palette"
	"github.com/sakif/snippet-box/internal/reconcile"
	"github.com/sakif/snippet-box/internal/service"
)

// Snippets is the part of service.SnippetService the controller drives.
type Snippets interface {
	Snippets() model.Collection
	Version() uint64
	Add(ctx context.Context, title, code string) (model.Snippet, error)
	EditTitle(ctx context.Context, id, title string) (model.Snippet, error)
	SaveCode(ctx context.Context, id, code string) (model.Snippet, error)
	Delete(ctx context.Context, id string, confirm service.Confirm) (bool, error)
	Refresh(ctx context.Context) (reconcile.Result, error)
	Width(ctx context.Context) int
	SetWidth(ctx context.Context, w int) (int, error)
}

var _ Snippets = (*service.SnippetService)(nil)

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(message string) bool
}

// Prompter asks the user for a new snippet. ok=false means the user cancelled.
type Prompter interface {
	PromptAdd(ctx context.Context) (title, code string, ok bool)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(message string) bool

func (f ConfirmFunc) Confirm(message string) bool { return f(message) }

// Outcome is what one Dispatch produced.
type Outcome struct {
	State  State    `json:"state"`
	Toasts []string `json:"toasts,omitempty"`
	// Copied holds the text put on the clipboard, if any.
	Copied *string `json:"copied,omitempty"`
	// NeedsInput is set when an add was requested but no Prompter is configured;
	// the host should collect a title and code and dispatch Add itself.
	NeedsInput bool `json:"needsInput,omitempty"`
	// Snippet is the record an Add, SaveEdit or SaveTitle produced.
	Snippet *model.Snippet `json:"snippet,omitempty"`
	// Result is set by a Refresh that fetched successfully.
	Result *reconcile.Result `json:"-"`
	// Err is the last failure. Hosts may map it to a status; it is never fatal.
	Err error `json:"-"`
}

// Controller owns the current State and carries out Effects.
type Controller struct {
	snippets  Snippets
	clipboard clipboard.Writer
	confirmer Confirmer
	prompter  Prompter
	logger    *slog.Logger

	mu    sync.Mutex
	state State
	seen  uint64
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithConfirmer sets who is asked before a delete that is not pre-confirmed.
// Without one, unconfirmed deletes are declined.
func WithConfirmer(c Confirmer) ControllerOption {
	return func(ctl *Controller) { ctl.confirmer = c }
}

// WithPrompter sets who is asked for a new snippet's title and code.
func WithPrompter(p Prompter) ControllerOption {
	return func(ctl *Controller) { ctl.prompter = p }
}

// NewController returns a Controller whose panel width is read from the service.
func NewController(ctx context.Context, snippets Snippets, clip clipboard.Writer, logger *slog.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		snippets:  snippets,
		clipboard: clip,
		logger:    logger,
		state:     Initial(snippets.Width(ctx)),
		seen:      snippets.Version(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state, with palette results recomputed if the
// collection changed since the last call.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sync()
	return c.state
}

// Visible returns the panel list for the current search query.
func (c *Controller) Visible() model.Collection {
	c.mu.Lock()
	query := c.state.Search
	c.mu.Unlock()
	return Visible(c.snippets.Snippets(), query)
}

// Dispatch reduces cmd and runs the resulting effects.
func (c *Controller) Dispatch(ctx context.Context, cmd Command) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sync()
	next, effects := Reduce(c.state, c.snippets.Snippets(), cmd)
	c.state = next

	var out Outcome
	for _, e := range effects {
		c.run(ctx, e, &out)
	}

	c.sync()
	out.State = c.state
	return out
}

// sync refreshes palette results after the collection changed underneath us,
// for example after a background refresh. Must be called with mu held.
func (c *Controller) sync() {
	v := c.snippets.Version()
	if v == c.seen {
		return
	}
	c.seen = v
	c.state.Palette = c.state.Palette.Refresh(palette.Build(c.snippets.Snippets()))
}

func (c *Controller) run(ctx context.Context, e Effect, out *Outcome) {
	switch e := e.(type) {
	case Toast:
		out.Toasts = append(out.Toasts, e.Message)

	case Copy:
		if err := c.clipboard.Write(e.Text); err != nil {
			c.logger.Warn("copy failed", slog.String("error", err.Error()))
			out.Toasts = append(out.Toasts, MsgCopyFailed)
			out.Err = err
			return
		}
		text := e.Text
		out.Copied = &text
		out.Toasts = append(out.Toasts, MsgCopied)

	case PromptAdd:
		if c.prompter == nil {
			out.NeedsInput = true
			return
		}
		title, code, ok := c.prompter.PromptAdd(ctx)
		if !ok {
			return
		}
		c.mutate(ctx, Add{Title: title, Code: code}, out)

	case Mutate:
		c.mutate(ctx, e.Command, out)
	}
}

func (c *Controller) mutate(ctx context.Context, cmd Command, out *Outcome) {
	switch cmd := cmd.(type) {
	case Add:
		snippet, err := c.snippets.Add(ctx, cmd.Title, cmd.Code)
		if errors.Is(err, apperror.ErrValidation) {
			// An empty title is a silent cancel, as when the prompt is dismissed.
			out.Err = err
			return
		}
		c.saved(out, &snippet, err, MsgAdded)

	case SaveEdit:
		snippet, err := c.snippets.SaveCode(ctx, cmd.ID, cmd.Code)
		c.saved(out, &snippet, err, MsgSaved)

	case SaveTitle:
		snippet, err := c.snippets.EditTitle(ctx, cmd.ID, cmd.Title)
		if errors.Is(err, apperror.ErrValidation) {
			out.Err = err
			return
		}
		c.saved(out, &snippet, err, MsgTitleUpdated)

	case Delete:
		deleted, err := c.snippets.Delete(ctx, cmd.ID, c.confirm(cmd))
		switch {
		case err != nil:
			out.Err = err
			out.Toasts = append(out.Toasts, MsgSaveFailed)
		case deleted:
			out.Toasts = append(out.Toasts, MsgDeleted)
		}

	case Refresh:
		res, err := c.snippets.Refresh(ctx)
		switch {
		case errors.Is(err, apperror.ErrSourceUnavailable):
			out.Toasts = append(out.Toasts, MsgLoadFailed)
		case err != nil:
			out.Toasts = append(out.Toasts, MsgPersistFailed)
		default:
			out.Toasts = append(out.Toasts, MergedMessage(len(res.Collection)))
		}
		if err == nil || errors.Is(err, apperror.ErrStoreWrite) {
			out.Result = &res
		}
		out.Err = err

	case SetWidth:
		w, err := c.snippets.SetWidth(ctx, cmd.Width)
		c.state.Width = w
		out.Err = err
	}
}

// saved records the outcome of a write: the resulting record, if any, and a toast.
// After a write failure the record still exists in memory, so it is returned too.
func (c *Controller) saved(out *Outcome, snippet *model.Snippet, err error, okMsg string) {
	if snippet.ID != "" {
		out.Snippet = snippet
	}
	if err != nil {
		out.Err = err
		if errors.Is(err, apperror.ErrStoreWrite) || errors.Is(err, apperror.ErrStoreRead) {
			out.Toasts = append(out.Toasts, MsgSaveFailed)
		}
		return
	}
	out.Toasts = append(out.Toasts, okMsg)
}

// confirm builds the confirmation capability for a delete.
func (c *Controller) confirm(cmd Delete) service.Confirm {
	if cmd.Confirmed {
		return func(model.Snippet) bool { return true }
	}
	if c.confirmer == nil {
		return nil
	}
	return func(s model.Snippet) bool {
		return c.confirmer.Confirm(service.ConfirmMessage(s))
	}
}
