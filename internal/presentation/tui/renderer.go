package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// NewCodeRenderer renders text as a fenced code block in lang.
func NewCodeRenderer(lang string) func(string) (string, error) {
	render := NewRenderer()
	return func(code string) (string, error) {
		fence := "```"
		for strings.Contains(code, fence) {
			fence += "`"
		}
		return render(fence + lang + "\n" + strings.TrimRight(code, "\n") + "\n" + fence + "\n")
	}
}
