// Package panel turns user intents into state transitions and side effects.
//
// Every host (HTTP API, CLI, terminal palette) speaks the same Command set.
// Reduce is a pure function: given the current State, the current snippet
// collection and a Command, it returns the next State and the Effects the host
// must carry out. The Controller is the thin stateful shell that owns the
// current State and executes those Effects against the snippet service and
// the clipboard.
package panel

import (
	"strconv"
	"strings"

	"github.com/sakif/snippet-box/internal/model"
	"github.com/sakif/snippet-box/internal/palette"
)

// State is everything a panel host renders.
type State struct {
	PanelOpen bool          `json:"panelOpen"`
	Search    string        `json:"search"`
	Width     int           `json:"width"`
	Palette   palette.State `json:"palette"`
}

// Initial returns a closed panel with a closed palette.
func Initial(width int) State {
	return State{Width: width, Palette: palette.Closed()}
}

// =========================================================================
// COMMANDS
// =========================================================================

// Command is a user intent.
type Command interface{ command() }

type (
	// Add creates a local snippet.
	Add struct{ Title, Code string }
	// Refresh merges the external snippet list.
	Refresh struct{}
	// Search filters the panel list.
	Search struct{ Query string }
	// PaletteQuery edits the palette's query.
	PaletteQuery struct{ Query string }
	// Navigate moves the palette selection.
	Navigate struct{ Delta int }
	// Activate runs the selected palette candidate.
	Activate struct{}
	// Pick selects the palette candidate at Index and activates it.
	Pick struct{ Index int }
	// Delete removes a snippet. Confirmed skips the confirmation prompt.
	Delete struct {
		ID        string
		Confirmed bool
	}
	// SaveEdit replaces a snippet's code.
	SaveEdit struct{ ID, Code string }
	// SaveTitle replaces a snippet's title.
	SaveTitle struct{ ID, Title string }
	OpenPalette   struct{}
	ClosePalette  struct{}
	TogglePalette struct{}
	// TogglePanel shows or hides the panel. Hiding it also closes the palette.
	TogglePanel struct{}
	// SetWidth stores the panel width preference.
	SetWidth struct{ Width int }
)

func (Add) command()           {}
func (Refresh) command()       {}
func (Search) command()        {}
func (PaletteQuery) command()  {}
func (Navigate) command()      {}
func (Activate) command()      {}
func (Pick) command()          {}
func (Delete) command()        {}
func (SaveEdit) command()      {}
func (SaveTitle) command()     {}
func (OpenPalette) command()   {}
func (ClosePalette) command()  {}
func (TogglePalette) command() {}
func (TogglePanel) command()   {}
func (SetWidth) command()      {}

// =========================================================================
// EFFECTS
// =========================================================================

// Effect is work Reduce asks the host to perform.
type Effect interface{ effect() }

type (
	// Mutate runs Command against the snippet service.
	Mutate struct{ Command Command }
	// Copy puts Text on the clipboard.
	Copy struct{ Text string }
	// Toast shows a short status message.
	Toast struct{ Message string }
	// PromptAdd asks the user for a new snippet's title and code.
	PromptAdd struct{}
)

func (Mutate) effect()    {}
func (Copy) effect()      {}
func (Toast) effect()     {}
func (PromptAdd) effect() {}

// Toast texts.
const (
	MsgAdded         = "Added local snippet"
	MsgSaved         = "Saved locally"
	MsgSaveFailed    = "Local Save Failed"
	MsgTitleUpdated  = "Title updated"
	MsgDeleted       = "Deleted"
	MsgCopied        = "Copied snippet"
	MsgCopyFailed    = "Copy failed"
	MsgLoading       = "Loading bundled snippets..."
	MsgLoadFailed    = "Failed to load bundled JSON"
	MsgPersistFailed = "Failed to persist merged snippets"
)

// MergedMessage is the toast shown after a successful refresh.
func MergedMessage(total int) string {
	return "Merged " + strconv.Itoa(total) + " snippets (local + bundled)"
}

// =========================================================================
// REDUCER
// =========================================================================

// Reduce returns the state after cmd and the effects to run. It never mutates
// its inputs and performs no I/O.
func Reduce(s State, collection model.Collection, cmd Command) (State, []Effect) {
	switch c := cmd.(type) {
	case Add, SaveEdit, SaveTitle, Delete, SetWidth:
		return s, []Effect{Mutate{Command: c}}

	case Refresh:
		return s, []Effect{Toast{Message: MsgLoading}, Mutate{Command: c}}

	case Search:
		s.Search = c.Query
		return s, nil

	case PaletteQuery:
		s.Palette = s.Palette.SetQuery(c.Query, palette.Build(collection))
		return s, nil

	case Navigate:
		s.Palette = s.Palette.Move(c.Delta)
		return s, nil

	case Pick:
		s.Palette = s.Palette.Select(c.Index)
		if s.Palette.Active != c.Index {
			return s, nil
		}
		return activate(s, collection)

	case Activate:
		return activate(s, collection)

	case OpenPalette:
		if !s.Palette.Open {
			s.Palette = s.Palette.Opened(palette.Build(collection))
		}
		return s, nil

	case ClosePalette:
		s.Palette = s.Palette.Close()
		return s, nil

	case TogglePalette:
		s.Palette = s.Palette.Toggle(palette.Build(collection))
		return s, nil

	case TogglePanel:
		s.PanelOpen = !s.PanelOpen
		if !s.PanelOpen {
			s.Palette = s.Palette.Close()
		}
		return s, nil
	}
	return s, nil
}

// activate runs the selected palette candidate and closes the palette.
// With nothing selected it is a no-op.
func activate(s State, collection model.Collection) (State, []Effect) {
	sel, ok := s.Palette.Selected()
	if !ok {
		return s, nil
	}
	s.Palette = s.Palette.Close()

	if sel.IsCommand() {
		switch sel.ID {
		case palette.CommandAdd:
			return s, []Effect{PromptAdd{}}
		case palette.CommandRefresh:
			return s, []Effect{Toast{Message: MsgLoading}, Mutate{Command: Refresh{}}}
		}
		return s, nil
	}

	snippet, found := collection.Find(sel.ID)
	if !found {
		return s, nil
	}
	return s, []Effect{Copy{Text: snippet.Code}}
}

// Visible returns the records the panel list shows for query: a trimmed,
// case-insensitive substring match on title or code.
func Visible(collection model.Collection, query string) model.Collection {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make(model.Collection, 0, len(collection))
	for _, snippet := range collection {
		if q == "" ||
			strings.Contains(strings.ToLower(snippet.Title), q) ||
			strings.Contains(strings.ToLower(snippet.Code), q) {
			out = append(out, snippet)
		}
	}
	return out
}
