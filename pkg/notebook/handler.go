package notebook

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Handler reports results as cells complete.
type Handler interface {
	Cell(res Result) error
	Done(results []Result) error
}

// ContentRenderer transforms cell output before printing it, e.g. markdown to ANSI.
type ContentRenderer func(string) (string, error)

type discard struct{}

func (discard) Cell(Result) error   { return nil }
func (discard) Done([]Result) error { return nil }

// TextHandler prints a header and the output of each cell.
type TextHandler struct {
	Out      io.Writer
	Renderer ContentRenderer
}

// NewTextHandler creates a TextHandler writing to out.
func NewTextHandler(out io.Writer, renderer ContentRenderer) *TextHandler {
	return &TextHandler{Out: out, Renderer: renderer}
}

func (h *TextHandler) Cell(res Result) error {
	title := res.Cell.ID
	if res.Cell.Title != "" {
		title = res.Cell.Title
	}

	switch {
	case res.Skipped:
		_, err := fmt.Fprintf(h.Out, "-- %s (skipped)\n", title)
		return err
	case res.Err != nil:
		_, err := fmt.Fprintf(h.Out, "!! %s: %v\n", title, res.Err)
		return err
	}

	if _, err := fmt.Fprintf(h.Out, "== %s (%s)\n", title, res.Duration.Round(time.Millisecond)); err != nil {
		return err
	}
	out := res.Output
	if h.Renderer != nil && out != "" {
		rendered, err := h.Renderer(out)
		if err == nil {
			out = rendered
		}
	}
	if out == "" {
		return nil
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	_, err := io.WriteString(h.Out, out)
	return err
}

func (h *TextHandler) Done(results []Result) error {
	var failed, skipped int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.Skipped:
			skipped++
		}
	}
	_, err := fmt.Fprintf(h.Out, "%d cells, %d failed, %d skipped\n", len(results), failed, skipped)
	return err
}

// JSONHandler writes one JSON object per cell.
type JSONHandler struct {
	enc *json.Encoder
}

// NewJSONHandler creates a JSONHandler writing to out.
func NewJSONHandler(out io.Writer) *JSONHandler {
	return &JSONHandler{enc: json.NewEncoder(out)}
}

type jsonLine struct {
	ID       string `json:"id"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	Duration int64  `json:"duration_ms"`
}

func (h *JSONHandler) Cell(res Result) error {
	line := jsonLine{
		ID:       res.Cell.ID,
		Output:   res.Output,
		Skipped:  res.Skipped,
		Duration: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		line.Error = res.Err.Error()
	}
	return h.enc.Encode(line)
}

func (h *JSONHandler) Done([]Result) error { return nil }
