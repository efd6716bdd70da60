package workspace

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/aoide/pkg/adapters/memory"
	"github.com/aretw0/aoide/pkg/domain"
)

func TestWithLock_ReleasesEntries(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := "project-" + strconv.Itoa(i%7)
			_, _ = mgr.LoadOrCreate(ctx, id, "")
			_ = mgr.Delete(ctx, id)
		}()
	}
	wg.Wait()

	assert.Empty(t, mgr.locks, "lock entries outlive their last holder")
}

func TestWithLock_ReleasesOnError(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	boom := errors.New("boom")

	err := mgr.WithLock(context.Background(), "p1", func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Empty(t, mgr.locks)

	_, err = mgr.Load(context.Background(), "p1")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	assert.Empty(t, mgr.locks)
}
