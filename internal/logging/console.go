package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiReset = "\x1b[0m"
)

// Console writes the user-facing status lines of the watch loop. Every
// line is prefixed with an RFC 3339 UTC timestamp in brackets. Writes are
// serialised so lines from concurrent cycles never interleave.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	now   func() time.Time
	color bool
}

// NewConsole returns a Console writing plain text to w. A nil w discards
// output.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = io.Discard
	}

	return &Console{w: w, now: now}
}

// NewTerminalConsole is like NewConsole but colours success and failure
// lines when w is a terminal, unless noColor is set or NO_COLOR is present
// in the environment.
func NewTerminalConsole(w io.Writer, noColor bool) *Console {
	c := NewConsole(w)
	c.color = !noColor && isColorTerminal(w)

	return c
}

func isColorTerminal(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}

	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printf writes a single timestamped line.
func (c *Console) Printf(format string, args ...any) {
	c.line("", format, args...)
}

// Successf writes a timestamped line, in green on a colour terminal.
func (c *Console) Successf(format string, args ...any) {
	c.line(ansiGreen, format, args...)
}

// Failf writes a timestamped line, in red on a colour terminal.
func (c *Console) Failf(format string, args ...any) {
	c.line(ansiRed, format, args...)
}

func (c *Console) line(color, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.color && color != "" {
		msg = color + msg + ansiReset
	}

	fmt.Fprintf(c.w, "[%s] %s\n", c.now().UTC().Format(timeLayout), msg)
}

// Println writes a plain, untimestamped line (startup summary, shutdown).
func (c *Console) Println(args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.w, args...)
}

// Block writes multi-line text, such as a diff, as is.
func (c *Console) Block(text string) {
	if text == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	io.WriteString(c.w, text) //nolint:errcheck

	if text[len(text)-1] != '\n' {
		io.WriteString(c.w, "\n") //nolint:errcheck
	}
}
