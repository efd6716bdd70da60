package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/aoide/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunProjectStoreContract runs a suite of tests to verify that a ProjectStore implementation
// adheres to the defined interface contract.
func RunProjectStoreContract(t *testing.T, store ProjectStore) {
	ctx := context.Background()
	projectID := "contract-test-project-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		project := domain.NewProject(projectID, "Contract")
		project.Process = "P123"
		project.Readiness = domain.ReadinessReady
		project.Source = "print('hi')"

		err := store.Save(ctx, project)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, projectID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, project.ID, loaded.ID)
		assert.Equal(t, project.Name, loaded.Name)
		assert.Equal(t, domain.ProcessRef("P123"), loaded.Process)
		assert.Equal(t, domain.ReadinessReady, loaded.Readiness)
		assert.Equal(t, "print('hi')", loaded.Source)
		assert.True(t, project.CreatedAt.Equal(loaded.CreatedAt), "timestamps should round-trip")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+projectID)
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	})

	t.Run("Overwrite", func(t *testing.T) {
		project := domain.NewProject(projectID, "Contract")
		project.Process = "P456"
		require.NoError(t, store.Save(ctx, project))

		loaded, err := store.Load(ctx, projectID)
		require.NoError(t, err)
		assert.Equal(t, domain.ProcessRef("P456"), loaded.Process)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, domain.NewProject(projectID, "Contract"))
		require.NoError(t, err)

		err = store.Delete(ctx, projectID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, projectID)
		assert.ErrorIs(t, err, domain.ErrProjectNotFound, "Load after Delete should return ErrProjectNotFound")

		assert.NoError(t, store.Delete(ctx, projectID), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := projectID + "-1"
		id2 := projectID + "-2"
		_ = store.Save(ctx, domain.NewProject(id1, "one"))
		_ = store.Save(ctx, domain.NewProject(id2, "two"))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		projects, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, projects, id1)
		assert.Contains(t, projects, id2)
	})
}
