package notebook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/aoide/pkg/adapters/memory"
	"github.com/aretw0/aoide/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender answers each eval with the code echoed back, or with an Error
// field when the code starts with "error(".
type fakeSender struct {
	mu   sync.Mutex
	reqs []domain.WriteRequest
	fail error
}

func (f *fakeSender) Send(ctx context.Context, req domain.WriteRequest) (map[string]any, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if f.fail != nil {
		return nil, f.fail
	}
	if strings.HasPrefix(req.Data, "error(") {
		return map[string]any{"Error": "boom"}, nil
	}
	if strings.HasPrefix(req.Data, "sleep") {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return map[string]any{"Output": map[string]any{"data": "=" + req.Data}}, nil
}

func notebook(t *testing.T, cells ...domain.Cell) *memory.Loader {
	t.Helper()
	l, err := memory.NewFromCells(cells...)
	require.NoError(t, err)
	return l
}

func TestRun_EvaluatesInOrder(t *testing.T) {
	sender := &fakeSender{}
	loader := notebook(t,
		domain.Cell{ID: "b", Order: 2, Code: "2"},
		domain.Cell{ID: "a", Order: 1, Code: "1", Tags: domain.Tags{{Name: "Target", Value: "P9"}}},
	)

	results, err := NewRunner(loader, sender).Run(context.Background(), "P1")
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "=1", results[0].Output)
	assert.Equal(t, "=2", results[1].Output)

	require.Len(t, sender.reqs, 2)
	assert.Equal(t, domain.ProcessRef("P1"), sender.reqs[0].Process)
	action, _ := sender.reqs[0].Tags.Get(domain.TagAction)
	assert.Equal(t, domain.ActionEval, action)
	target, _ := sender.reqs[0].Tags.Get("Target")
	assert.Equal(t, "P9", target)
}

func TestRun_StopsOnFirstFailure(t *testing.T) {
	sender := &fakeSender{}
	loader := notebook(t,
		domain.Cell{ID: "a", Order: 1, Code: "error('x')"},
		domain.Cell{ID: "b", Order: 2, Code: "2"},
	)

	results, err := NewRunner(loader, sender).Run(context.Background(), "P1")
	assert.ErrorIs(t, err, ErrCellFailed)
	assert.Len(t, results, 1)
	assert.Len(t, sender.reqs, 1)
}

func TestRun_ContinueOnError(t *testing.T) {
	sender := &fakeSender{}
	loader := notebook(t,
		domain.Cell{ID: "a", Order: 1, Code: "error('x')"},
		domain.Cell{ID: "b", Order: 2, Code: "2"},
	)

	results, err := NewRunner(loader, sender, WithContinueOnError(true)).Run(context.Background(), "P1")
	assert.ErrorIs(t, err, ErrCellFailed)
	require.Len(t, results, 2)
	assert.NoError(t, results[1].Err)
}

func TestRun_TransportFailure(t *testing.T) {
	boom := errors.New("node down")
	loader := notebook(t, domain.Cell{ID: "a", Code: "1"})

	_, err := NewRunner(loader, &fakeSender{fail: boom}).Run(context.Background(), "P1")
	assert.ErrorIs(t, err, boom)
}

func TestRun_SkipsCells(t *testing.T) {
	sender := &fakeSender{}
	loader := notebook(t,
		domain.Cell{ID: "a", Code: "1", Skip: true},
		domain.Cell{ID: "b", Code: "2"},
	)

	results, err := NewRunner(loader, sender).Run(context.Background(), "P1")
	require.NoError(t, err)
	assert.True(t, results[0].Skipped)
	assert.Len(t, sender.reqs, 1)
}

func TestRun_CellTimeout(t *testing.T) {
	loader := notebook(t, domain.Cell{ID: "slow", Code: "sleep", Timeout: 20 * time.Millisecond})

	_, err := NewRunner(loader, &fakeSender{}).Run(context.Background(), "P1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sender := &fakeSender{}
	_, err := NewRunner(notebook(t, domain.Cell{ID: "a", Code: "1"}), sender).Run(ctx, "P1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sender.reqs)
}

func TestRunCell(t *testing.T) {
	loader := notebook(t, domain.Cell{ID: "a", Code: "1"}, domain.Cell{ID: "b", Code: "2"})
	runner := NewRunner(loader, &fakeSender{})

	res, err := runner.RunCell(context.Background(), "P1", "b")
	require.NoError(t, err)
	assert.Equal(t, "=2", res.Output)

	_, err = runner.RunCell(context.Background(), "P1", "zzz")
	assert.ErrorIs(t, err, domain.ErrCellNotFound)
}

func TestTextHandler(t *testing.T) {
	var buf bytes.Buffer
	loader := notebook(t,
		domain.Cell{ID: "a", Order: 1, Title: "First", Code: "1"},
		domain.Cell{ID: "b", Order: 2, Code: "2", Skip: true},
		domain.Cell{ID: "c", Order: 3, Code: "error()"},
	)
	upper := func(s string) (string, error) { return strings.ToUpper(s), nil }

	_, err := NewRunner(loader, &fakeSender{},
		WithHandler(NewTextHandler(&buf, upper)),
		WithContinueOnError(true),
	).Run(context.Background(), "P1")
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "== First")
	assert.Contains(t, out, "=1\n")
	assert.Contains(t, out, "-- b (skipped)")
	assert.Contains(t, out, "!! c:")
	assert.Contains(t, out, "3 cells, 1 failed, 1 skipped")
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	loader := notebook(t, domain.Cell{ID: "a", Order: 1, Code: "1"}, domain.Cell{ID: "b", Order: 2, Code: "error()"})

	_, _ = NewRunner(loader, &fakeSender{},
		WithHandler(NewJSONHandler(&buf)),
		WithContinueOnError(true),
	).Run(context.Background(), "P1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "=1", first["output"])
	assert.Contains(t, second["error"], "boom")
}
