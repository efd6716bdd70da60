package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/aoide"
	"github.com/aretw0/aoide/internal/config"
	"github.com/aretw0/aoide/internal/logging"
	"github.com/aretw0/aoide/internal/testutils"
	"github.com/aretw0/aoide/pkg/adapters/memory"
	"github.com/aretw0/aoide/pkg/domain"
)

func newClient(t *testing.T) (*aoide.Client, *testutils.FakeNode) {
	t.Helper()
	node := testutils.NewFakeNode(t)
	cfg := config.Default()
	cfg.EndpointURL = node.URL()
	cfg.Store = config.StoreMemory
	cfg.PollInterval = 5 * time.Millisecond
	cfg.RegisterDelay = time.Millisecond

	client, err := aoide.New(cfg, aoide.WithLogger(logging.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, node
}

func writeNotebook(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cells := map[string]string{
		"a.md": "---\norder: 1\ntitle: First\n---\nx = 1\n",
		"b.md": "---\norder: 2\n---\nreturn x\n",
	}
	for name, body := range cells {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestExecute_ExistingProcess(t *testing.T) {
	client, node := newClient(t)
	var out, errOut bytes.Buffer

	err := Execute(context.Background(), client, RunOptions{
		Dir:     writeNotebook(t),
		Process: "P1",
		Out:     &out,
		Err:     &errOut,
	})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "== First")
	assert.Contains(t, out.String(), "2 cells, 0 failed, 0 skipped")
	assert.Empty(t, errOut.String())

	pushes := node.Pushes()
	require.Len(t, pushes, 2)
	assert.Equal(t, "P1", pushes[0].Process)
	assert.Equal(t, "x = 1", pushes[0].Fields[domain.KeyData])
}

func TestExecute_SpawnsAndWritesJSON(t *testing.T) {
	client, node := newClient(t)
	var out, errOut bytes.Buffer

	err := Execute(context.Background(), client, RunOptions{
		Dir:  writeNotebook(t),
		JSON: true,
		Cell: "b",
		Out:  &out,
		Err:  &errOut,
	})
	require.NoError(t, err)
	assert.Contains(t, errOut.String(), ">>> Spawned process 'P123'")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &line))
	assert.Equal(t, "b", line["id"])
	assert.Equal(t, "ok", line["output"])

	pushes := node.Pushes()
	require.Len(t, pushes, 2)
	assert.Equal(t, "P123", pushes[1].Process)
}

func TestExecute_Failures(t *testing.T) {
	client, node := newClient(t)
	node.OnMessage = func(process string, fields map[string]string) testutils.Reply {
		return testutils.Reply{Body: `{"Error":"boom"}`}
	}

	err := Execute(context.Background(), client, RunOptions{
		Dir:     writeNotebook(t),
		Process: "P1",
		Out:     &bytes.Buffer{},
		Err:     &bytes.Buffer{},
	})
	assert.ErrorContains(t, err, "boom")

	err = Execute(context.Background(), client, RunOptions{Dir: t.TempDir(), Watch: true, Cell: "a"})
	assert.Error(t, err)
}

func TestRunOnce_InterruptedIsClean(t *testing.T) {
	client, node := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader := memory.NewLoader(map[string]string{"a": "return 1"})
	err := runOnce(ctx, client, loader, "P1", RunOptions{Out: &bytes.Buffer{}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, handleExecutionError(err))
	assert.Empty(t, node.Pushes())
}

type watchLoader struct {
	*memory.Loader
	changes chan string
}

func (w watchLoader) Watch(ctx context.Context) (<-chan string, error) {
	return w.changes, nil
}

func TestRunWatch_RerunsOnChange(t *testing.T) {
	client, node := newClient(t)
	loader := watchLoader{
		Loader:  memory.NewLoader(map[string]string{"a": "return 1"}),
		changes: make(chan string, 4),
	}
	var errOut bytes.Buffer

	done := make(chan error, 1)
	go func() {
		done <- RunWatch(context.Background(), client, loader, "P1", RunOptions{
			Out: &bytes.Buffer{},
			Err: &errOut,
		})
	}()

	require.Eventually(t, func() bool { return len(node.Pushes()) == 1 }, time.Second, 5*time.Millisecond)
	loader.changes <- "a"
	loader.changes <- "a"
	require.Eventually(t, func() bool { return len(node.Pushes()) == 2 }, time.Second, 5*time.Millisecond)

	close(loader.changes)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch loop did not stop")
	}
	assert.Len(t, node.Pushes(), 2, "a burst of events reruns once")
	assert.Equal(t, 1, strings.Count(errOut.String(), "Change detected"))
}

func TestDrain(t *testing.T) {
	ch := make(chan string, 2)
	ch <- "a"
	ch <- "b"
	assert.True(t, drain(context.Background(), ch, 10*time.Millisecond))
	assert.Empty(t, ch)

	close(ch)
	assert.False(t, drain(context.Background(), ch, time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, drain(ctx, make(chan string), time.Second))
}

func TestSignalContext_Cancel(t *testing.T) {
	sc := NewSignalContext(context.Background())
	sc.Cancel()
	<-sc.Done()
	assert.Nil(t, sc.Signal())
}
