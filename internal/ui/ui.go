// Package ui renders human-readable progress and results to a terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes styled lines to one writer. Color is dropped automatically
// when the writer is not a terminal.
type Printer struct {
	w io.Writer
	s styles
}

// New returns a Printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{w: w, s: newStyles(lipgloss.NewRenderer(w))}
}

// Stderr returns a Printer on os.Stderr.
func Stderr() *Printer {
	return New(os.Stderr)
}

// Info prints a de-emphasized message.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.w, p.s.muted.Render(msg))
}

// Success prints a message marked as done.
func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.w, p.s.success.Render(iconDone+" "+msg))
}

// Warn prints a warning.
func (p *Printer) Warn(msg string) {
	fmt.Fprintln(p.w, p.s.warn.Render(iconWarn+" "+msg))
}

// Error prints an error.
func (p *Printer) Error(msg string) {
	fmt.Fprintln(p.w, p.s.danger.Render("error: ")+msg)
}

// field prints one aligned "label value" line.
func (p *Printer) field(label, value string) {
	fmt.Fprintln(p.w, "  "+p.s.label.Render(label+":")+value)
}

// shortID abbreviates a 64-character event ID for display.
func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:8] + "…" + id[len(id)-4:]
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
