package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/aoide/pkg/adapters/memory"
	"github.com/aretw0/aoide/pkg/domain"
	"github.com/aretw0/aoide/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunProjectStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	project := domain.NewProject("p1", "one")
	require.NoError(t, store.Save(ctx, project))
	project.Process = "mutated"

	loaded, err := store.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, loaded.Process)

	loaded.Name = "changed"
	again, err := store.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "one", again.Name)
}
