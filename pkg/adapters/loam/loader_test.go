package loam

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"

	"github.com/aretw0/aoide/internal/testutils"
	"github.com/aretw0/aoide/pkg/domain"
	"github.com/aretw0/aoide/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Contract(t *testing.T) {
	_, repo := testutils.SetupTestRepo(t)
	testutils.SaveCells(t, repo, map[string]string{
		"setup.md": "---\nid: setup\norder: 1\ntitle: Setup\n---\nCounter = 0",
		"bump.md":  "---\nid: bump\norder: 2\n---\nCounter = Counter + 1",
	})

	loader := New(loam.NewTypedRepository[CellMetadata](repo))

	tests.NotebookLoaderContractTest(t, loader, []domain.Cell{
		{ID: "setup", Order: 1, Code: "Counter = 0"},
		{ID: "bump", Order: 2, Code: "Counter = Counter + 1"},
	})
}

func TestLoader_Cells_NormalizesIDs(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t)

	files := map[string]string{
		"start.md": `---
id: start.md
---
print("start")`,
		"implicit.md": `---
order: -1
---
print("implicit")`,
	}
	for filename, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, filename), []byte(content), 0644))
	}

	loader := New(loam.NewTypedRepository[CellMetadata](repo))
	cells, err := loader.Cells(context.Background())
	require.NoError(t, err)

	require.Len(t, cells, 2)
	assert.Equal(t, "implicit", cells[0].ID, "ID is implied from the filename")
	assert.Equal(t, "start", cells[1].ID, "extension is stripped")
}

func TestLoader_Cells_DetectsCollisions(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t)

	files := map[string]string{
		"foo.md": `---
id: foo
---
a = 1`,
		"bar.md": `---
id: foo
---
b = 2`,
	}
	for filename, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, filename), []byte(content), 0644))
	}

	loader := New(loam.NewTypedRepository[CellMetadata](repo))
	_, err := loader.Cells(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
}

func TestLoader_Cell_Metadata(t *testing.T) {
	_, repo := testutils.SetupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, core.Document{
		ID: "send.md",
		Content: `---
id: send
timeout: 10s
skip: true
tags:
  Target: P9
  Action: Ping
---
Send({ Target = "P9" })`,
	}))

	loader := New(loam.NewTypedRepository[CellMetadata](repo))
	cell, err := loader.Cell(ctx, "send")
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cell.Timeout)
	assert.True(t, cell.Skip)
	assert.Equal(t, domain.Tags{{Name: "Action", Value: "Ping"}, {Name: "Target", Value: "P9"}}, cell.Tags)
	assert.Equal(t, `Send({ Target = "P9" })`, cell.Code)

	req := cell.Request("P1")
	v, _ := req.Tags.Get(domain.TagAction)
	assert.Equal(t, "Ping", v, "cell tags override the eval action")
}

func TestLoader_Cell_InvalidTimeout(t *testing.T) {
	_, repo := testutils.SetupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, core.Document{
		ID:      "slow.md",
		Content: "---\nid: slow\ntimeout: soon\n---\nx = 1",
	}))

	loader := New(loam.NewTypedRepository[CellMetadata](repo))
	_, err := loader.Cell(ctx, "slow")
	assert.ErrorContains(t, err, "invalid timeout")
}

func TestOpen_ReadsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.md"), []byte("---\norder: 1\n---\nx = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.md"), []byte("---\norder: 2\n---\nreturn x\n"), 0o644))

	loader, err := Open(dir)
	require.NoError(t, err)

	cells, err := loader.Cells(context.Background())
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, "one", cells[0].ID)
	assert.Equal(t, "return x", cells[1].Code)
}
