// Package clipboard copies snippet text out of the application.
//
// System tries the platform clipboard first (atotto/clipboard shells out to
// pbcopy, xclip, xsel, wl-copy or clip.exe). When that fails, usually on a
// headless box or over SSH, it falls back to an OSC 52 escape sequence written
// to the terminal, which most modern terminal emulators turn into a clipboard
// write on the user's side.
//
// Recorder is the HTTP host's clipboard: the server cannot reach the browser's
// clipboard, so the copied text is recorded and handed back in the response.
package clipboard

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/atotto/clipboard"

	"github.com/sakif/snippet-box/internal/apperror"
)

// Writer puts text on a clipboard.
type Writer interface {
	Write(text string) error
}

var (
	// ErrUnsupported is the cause reported when the platform has no clipboard utility.
	ErrUnsupported = errors.New("system clipboard unsupported")
	// ErrNoFallback is the cause reported when the primary mechanism fails and no terminal is configured.
	ErrNoFallback = errors.New("no fallback terminal configured")
)

// System writes to the platform clipboard, falling back to OSC 52.
type System struct {
	primary  func(string) error
	terminal io.Writer
}

var _ Writer = (*System)(nil)

// NewSystem returns a System clipboard. terminal receives the OSC 52 fallback;
// nil disables the fallback.
func NewSystem(terminal io.Writer) *System {
	s := &System{terminal: terminal}
	if !clipboard.Unsupported {
		s.primary = clipboard.WriteAll
	}
	return s
}

// Write copies text. A returned error is always a clipboard failure and
// never fatal to the caller.
func (s *System) Write(text string) error {
	primaryErr := ErrUnsupported
	if s.primary != nil {
		if primaryErr = s.primary(text); primaryErr == nil {
			return nil
		}
	}

	if s.terminal == nil {
		return apperror.ClipboardFailed(errors.Join(primaryErr, ErrNoFallback))
	}
	if _, err := io.WriteString(s.terminal, OSC52(text)); err != nil {
		return apperror.ClipboardFailed(errors.Join(primaryErr, fmt.Errorf("osc52: %w", err)))
	}
	return nil
}

// OSC52 returns the terminal escape sequence that sets the system clipboard to text.
func OSC52(text string) string {
	return "\x1b]52;c;" + base64.StdEncoding.EncodeToString([]byte(text)) + "\a"
}

// Recorder remembers the last text written to it.
type Recorder struct {
	mu   sync.Mutex
	last string
	n    int
}

var _ Writer = (*Recorder)(nil)

func (r *Recorder) Write(text string) error {
	r.mu.Lock()
	r.last = text
	r.n++
	r.mu.Unlock()
	return nil
}

// Last returns the most recently written text and how many writes have happened.
func (r *Recorder) Last() (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.n
}

// Func adapts a plain function to Writer.
type Func func(text string) error

func (f Func) Write(text string) error { return f(text) }
