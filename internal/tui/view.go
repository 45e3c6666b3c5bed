package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sakif/snippet-box/internal/model"
	"github.com/sakif/snippet-box/internal/palette"
)

type styles struct {
	frame   lipgloss.Style
	header  lipgloss.Style
	row     lipgloss.Style
	active  lipgloss.Style
	command lipgloss.Style
	hint    lipgloss.Style
	toast   lipgloss.Style
	help    lipgloss.Style
	warn    lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		frame:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1),
		header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		row:     lipgloss.NewStyle().PaddingLeft(2),
		active:  lipgloss.NewStyle().PaddingLeft(1).Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")),
		command: lipgloss.NewStyle().Foreground(lipgloss.Color("81")),
		hint:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		toast:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		help:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true),
		warn:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.header.Render("Snippets"))
	b.WriteString("\n")

	switch m.mode {
	case modeAddTitle:
		b.WriteString("New snippet title\n")
		b.WriteString(m.input.View())
	case modeAddCode:
		b.WriteString(fmt.Sprintf("Code for %q\n", m.pendingTitle))
		b.WriteString(m.input.View())
	case modeConfirmDelete:
		b.WriteString(m.styles.warn.Render(m.confirmPrompt()))
	default:
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(m.renderResults())
	}

	if len(m.toasts) > 0 {
		b.WriteString("\n")
		b.WriteString(m.styles.toast.Render(strings.Join(m.toasts, " · ")))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.help.Render(m.helpLine()))

	frame := m.styles.frame
	if m.width > 4 {
		frame = frame.Width(min(m.width-2, 100))
	}
	return frame.Render(b.String())
}

func (m Model) renderResults() string {
	if len(m.state.Results) == 0 {
		return m.styles.hint.Render("  no matches")
	}

	start, end := window(len(m.state.Results), m.state.Active, maxRows)
	lines := make([]string, 0, end-start+1)
	for i := start; i < end; i++ {
		lines = append(lines, m.renderRow(m.state.Results[i], i == m.state.Active))
	}
	if hidden := len(m.state.Results) - (end - start); hidden > 0 {
		lines = append(lines, m.styles.hint.Render(fmt.Sprintf("  … %d more", hidden)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderRow(c palette.Candidate, active bool) string {
	title := c.Title
	if c.IsCommand() {
		title = m.styles.command.Render(title)
	}
	line := title
	if c.Hint != "" {
		line += "  " + m.styles.hint.Render(c.Hint)
	}
	if active {
		return m.styles.active.Render("›" + line)
	}
	return m.styles.row.Render(line)
}

func (m Model) helpLine() string {
	switch m.mode {
	case modeAddTitle, modeAddCode:
		return "enter confirm · esc cancel"
	case modeConfirmDelete:
		return "y delete · any other key cancels"
	}
	return "enter activate · ↑/↓ move · ctrl+r refresh · ctrl+x delete · esc quit"
}

// window returns the [start, end) slice of n rows to draw so that active stays visible.
func window(n, active, size int) (int, int) {
	if n <= size {
		return 0, n
	}
	start := 0
	if active >= size {
		start = active - size + 1
	}
	return start, start + size
}

func snippetForCandidate(c palette.Candidate) model.Snippet {
	return model.Snippet{ID: c.ID, Title: c.Title}
}
