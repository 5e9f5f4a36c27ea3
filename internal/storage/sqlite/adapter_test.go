package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storylab-engine/internal/models"
	"storylab-engine/internal/storage"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	adapter, err := NewAdapter(&storage.SQLiteConfig{
		DatabasePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })
	return adapter
}

func sampleRecipe(id string) *models.Recipe {
	return &models.Recipe{
		ID:        id,
		Name:      "sample",
		StageType: "script",
		Version:   1,
		Nodes: []models.Node{
			{ID: "a", Type: models.NodeTypeDataProcessing, OutputKey: "aOut"},
		},
	}
}

func TestAdapter_RecipeRoundTrip(t *testing.T) {
	a := newTestAdapter(t)

	require.NoError(t, a.CreateRecipe(sampleRecipe("recipe-1")))

	fetched, err := a.GetRecipe("recipe-1")
	require.NoError(t, err)
	assert.Equal(t, "sample", fetched.Name)
	assert.Equal(t, "script", fetched.StageType)
	require.Len(t, fetched.Nodes, 1)
	assert.Equal(t, "aOut", fetched.Nodes[0].OutputKey)
}

func TestAdapter_UpdateAndDeleteRecipe(t *testing.T) {
	a := newTestAdapter(t)
	require.NoError(t, a.CreateRecipe(sampleRecipe("recipe-1")))

	modified := sampleRecipe("recipe-1")
	modified.Name = "renamed"
	modified.Version = 2
	require.NoError(t, a.UpdateRecipe(modified))

	fetched, err := a.GetRecipe("recipe-1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", fetched.Name)
	assert.Equal(t, 2, fetched.Version)

	require.NoError(t, a.DeleteRecipe("recipe-1"))
	_, err = a.GetRecipe("recipe-1")
	assert.Error(t, err)
}

func TestAdapter_UpdateUnknownRecipe(t *testing.T) {
	a := newTestAdapter(t)
	assert.Error(t, a.UpdateRecipe(sampleRecipe("recipe-nope")))
}

func TestAdapter_ListRecipesFiltered(t *testing.T) {
	a := newTestAdapter(t)

	first := sampleRecipe("recipe-1")
	require.NoError(t, a.CreateRecipe(first))

	second := sampleRecipe("recipe-2")
	second.StageType = "storyboard"
	require.NoError(t, a.CreateRecipe(second))

	matched, total, err := a.ListRecipesPaginated(models.RecipeFilters{StageType: "script"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, matched, 1)
	assert.Equal(t, "recipe-1", matched[0].ID)
}

func TestAdapter_ExecutionRoundTrip(t *testing.T) {
	a := newTestAdapter(t)

	execution := &models.Execution{
		ID:        "exec-1",
		RecipeID:  "recipe-1",
		ProjectID: "proj-1",
		Status:    models.ExecutionStatusPending,
		NodeResults: map[string]*models.NodeResult{
			"a": {NodeID: "a", Status: models.NodeStatusPending},
		},
	}
	require.NoError(t, a.CreateExecution(execution))

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusCompleted
	execution.StartedAt = &now
	execution.CompletedAt = &now
	execution.NodeResults["a"].Status = models.NodeStatusCompleted
	require.NoError(t, a.UpdateExecution(execution))

	fetched, err := a.GetExecution("exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, fetched.Status)
	assert.Equal(t, models.NodeStatusCompleted, fetched.NodeResults["a"].Status)
}

func TestAdapter_ListExecutionsByStatus(t *testing.T) {
	a := newTestAdapter(t)

	for i, status := range []models.ExecutionStatus{
		models.ExecutionStatusCompleted,
		models.ExecutionStatusFailed,
		models.ExecutionStatusCompleted,
	} {
		require.NoError(t, a.CreateExecution(&models.Execution{
			ID:       "exec-" + string(rune('a'+i)),
			RecipeID: "recipe-1",
			Status:   status,
		}))
	}

	_, total, err := a.ListExecutions(models.ExecutionFilters{Status: models.ExecutionStatusCompleted}, -1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestAdapter_DeleteExecutionsBefore(t *testing.T) {
	a := newTestAdapter(t)

	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC()

	require.NoError(t, a.CreateExecution(&models.Execution{
		ID: "exec-old", RecipeID: "r", Status: models.ExecutionStatusCompleted, CompletedAt: &old,
	}))
	require.NoError(t, a.CreateExecution(&models.Execution{
		ID: "exec-new", RecipeID: "r", Status: models.ExecutionStatusCompleted, CompletedAt: &recent,
	}))
	require.NoError(t, a.CreateExecution(&models.Execution{
		ID: "exec-running", RecipeID: "r", Status: models.ExecutionStatusRunning,
	}))

	deleted, err := a.DeleteExecutionsBefore(time.Now().UTC().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = a.GetExecution("exec-old")
	assert.Error(t, err)
	_, err = a.GetExecution("exec-running")
	assert.NoError(t, err)
}

func TestAdapter_RecipeStats(t *testing.T) {
	a := newTestAdapter(t)

	started := time.Now().UTC().Add(-time.Second)
	completed := time.Now().UTC()

	require.NoError(t, a.CreateExecution(&models.Execution{
		ID: "exec-1", RecipeID: "recipe-1", Status: models.ExecutionStatusCompleted,
		StartedAt: &started, CompletedAt: &completed,
	}))
	require.NoError(t, a.CreateExecution(&models.Execution{
		ID: "exec-2", RecipeID: "recipe-1", Status: models.ExecutionStatusFailed,
	}))

	stats, err := a.GetRecipeStats("recipe-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.CompletedRuns)
	assert.Equal(t, 1, stats.FailedRuns)
	assert.Greater(t, stats.AvgDurationMs, 0.0)
}

func TestAdapter_Health(t *testing.T) {
	a := newTestAdapter(t)
	assert.NoError(t, a.Health())
}
