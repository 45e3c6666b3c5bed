// Package tui is the interactive terminal palette.
//
// The model is a thin view over panel.Controller: keystrokes become panel
// commands, and the palette state the controller returns is what gets drawn.
// Commands that touch the store or the source (activate, refresh, add,
// delete) run as tea.Cmds so the UI never blocks on I/O; query edits and
// navigation are pure and dispatched inline.
//
// Keys:
//
//	type      filter            ↑/↓, ctrl+p/n   move
//	enter     activate          ctrl+r          refresh
//	ctrl+x    delete selected   esc / ctrl+c    quit
package tui

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sakif/snippet-box/internal/palette"
	"github.com/sakif/snippet-box/internal/panel"
	"github.com/sakif/snippet-box/internal/service"
)

// Dispatcher is the part of panel.Controller the palette drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd panel.Command) panel.Outcome
}

var _ Dispatcher = (*panel.Controller)(nil)

type mode int

const (
	modePalette mode = iota
	modeAddTitle
	modeAddCode
	modeConfirmDelete
)

// maxRows is how many results are drawn at once.
const maxRows = 12

// outcomeMsg carries the result of a dispatched command back into Update.
type outcomeMsg struct {
	out panel.Outcome
}

// Model is the bubbletea model of the palette.
type Model struct {
	ctx    context.Context
	ctl    Dispatcher
	input  textinput.Model
	styles styles

	mode     mode
	state    palette.State
	toasts   []string
	busy     bool
	quitting bool

	pendingTitle string
	deleting     palette.Candidate

	copied *string
	width  int
}

// New opens the palette on ctl and returns the model.
func New(ctx context.Context, ctl Dispatcher) Model {
	m := Model{
		ctx:    ctx,
		ctl:    ctl,
		input:  newInput("Search snippets and commands"),
		styles: defaultStyles(),
	}
	m.state = ctl.Dispatch(ctx, panel.OpenPalette{}).State.Palette
	return m
}

func newInput(placeholder string) textinput.Model {
	in := textinput.New()
	in.Prompt = "> "
	in.Placeholder = placeholder
	in.CharLimit = 4096
	in.Focus()
	return in
}

// Copied returns the snippet code the session ended by copying, if any.
func (m Model) Copied() (string, bool) {
	if m.copied == nil {
		return "", false
	}
	return *m.copied, true
}

// Toasts returns the most recent status messages.
func (m Model) Toasts() []string { return m.toasts }

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// dispatch runs cmd off the UI goroutine.
func (m Model) dispatch(cmd panel.Command) tea.Cmd {
	ctx, ctl := m.ctx, m.ctl
	return func() tea.Msg {
		return outcomeMsg{out: ctl.Dispatch(ctx, cmd)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case outcomeMsg:
		return m.applyOutcome(msg.out)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if m.busy {
			return m, nil
		}
		switch m.mode {
		case modeAddTitle, modeAddCode:
			return m.updateAdd(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		default:
			return m.updatePalette(msg)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updatePalette(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m.quit()
	case "up", "ctrl+p":
		m.state = m.ctl.Dispatch(m.ctx, panel.Navigate{Delta: -1}).State.Palette
		return m, nil
	case "down", "ctrl+n":
		m.state = m.ctl.Dispatch(m.ctx, panel.Navigate{Delta: 1}).State.Palette
		return m, nil
	case "enter":
		m.busy = true
		return m, m.dispatch(panel.Activate{})
	case "ctrl+r":
		m.busy = true
		m.toasts = []string{panel.MsgLoading}
		return m, m.dispatch(panel.Refresh{})
	case "ctrl+x":
		sel, ok := m.state.Selected()
		if !ok || sel.IsCommand() {
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.deleting = sel
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before {
		m.state = m.ctl.Dispatch(m.ctx, panel.PaletteQuery{Query: v}).State.Palette
	}
	return m, cmd
}

func (m Model) updateAdd(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m.reopen(), nil
	case "enter":
		value := m.input.Value()
		if m.mode == modeAddTitle {
			if strings.TrimSpace(value) == "" {
				// An empty title cancels the add.
				return m.reopen(), nil
			}
			m.pendingTitle = value
			m.mode = modeAddCode
			m.input = newInput("Code (optional)")
			return m, nil
		}
		m.busy = true
		m.mode = modePalette
		return m, m.dispatch(panel.Add{Title: m.pendingTitle, Code: value})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = modePalette
	switch msg.String() {
	case "y", "Y":
		m.busy = true
		return m, m.dispatch(panel.Delete{ID: m.deleting.ID, Confirmed: true})
	}
	return m, nil
}

func (m Model) applyOutcome(out panel.Outcome) (tea.Model, tea.Cmd) {
	m.busy = false
	if len(out.Toasts) > 0 {
		m.toasts = out.Toasts
	}

	if out.Copied != nil {
		m.copied = out.Copied
		m.quitting = true
		return m, tea.Quit
	}
	if out.NeedsInput {
		m.mode = modeAddTitle
		m.pendingTitle = ""
		m.input = newInput("Title")
		return m, nil
	}
	if !out.State.Palette.Open {
		return m.reopen(), nil
	}
	m.state = out.State.Palette
	return m, nil
}

// reopen returns to a fresh palette after an activation closed it.
func (m Model) reopen() Model {
	m.mode = modePalette
	m.pendingTitle = ""
	m.input = newInput("Search snippets and commands")
	m.state = m.ctl.Dispatch(m.ctx, panel.OpenPalette{}).State.Palette
	return m
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.ctl.Dispatch(m.ctx, panel.ClosePalette{})
	m.quitting = true
	return m, tea.Quit
}

// confirmPrompt is the question shown before a delete.
func (m Model) confirmPrompt() string {
	return service.ConfirmMessage(snippetForCandidate(m.deleting)) + " [y/N]"
}

// Run shows the palette until the user copies a snippet or quits, and
// returns the final model.
func Run(ctx context.Context, ctl Dispatcher, in io.Reader, out io.Writer) (Model, error) {
	final, err := tea.NewProgram(New(ctx, ctl),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	).Run()
	if err != nil {
		return Model{}, err
	}
	return final.(Model), nil
}
