// Package tui holds the terminal presentation helpers of the CLI.
package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// PrintBanner writes the aoide banner to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"   __ _  ___ (_) __| | ___ ", "#34d399"},
		{"  / _` |/ _ \\| |/ _` |/ _ \\", "#2dd4bf"},
		{" | (_| | (_) | | (_| |  __/", "#22d3ee"},
		{"  \\__,_|\\___/|_|\\__,_|\\___|", "#38bdf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  v"+version).Faint())
	fmt.Fprintln(w)
}

// Badge colours a short status word: green for ok, yellow otherwise.
func Badge(text string, ok bool) string {
	p := termenv.ColorProfile()
	color := "#fbbf24"
	if ok {
		color = "#34d399"
	}
	return termenv.String(text).Foreground(p.Color(color)).Bold().String()
}
