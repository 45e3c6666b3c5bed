package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sakif/snippet-box/internal/panel"
)

// linePrompt asks questions one line at a time.
type linePrompt struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

var (
	_ panel.Confirmer = (*linePrompt)(nil)
	_ panel.Prompter  = (*linePrompt)(nil)
)

func newLinePrompt(in io.Reader, out io.Writer) *linePrompt {
	return &linePrompt{in: bufio.NewReader(in), out: out}
}

// ask prints question and returns the answer without its line ending.
// ok is false when the input ended before anything was typed.
func (p *linePrompt) ask(question string) (answer string, ok bool) {
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(p.out)
		return "", false
	}
	return strings.TrimRight(line, "\r\n"), true
}

// Confirm accepts "y" or "yes" in any case. Anything else, including end of
// input, declines.
func (p *linePrompt) Confirm(message string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	answer, ok := p.ask(message + " [y/N] ")
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// PromptAdd asks for a title, then the code. An empty title cancels.
func (p *linePrompt) PromptAdd(ctx context.Context) (string, string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	title, ok := p.ask("Title: ")
	if !ok || strings.TrimSpace(title) == "" || ctx.Err() != nil {
		return "", "", false
	}
	code, _ := p.ask("Code: ")
	return title, code, true
}
