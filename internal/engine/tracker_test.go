package engine

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storylab-engine/internal/models"
	"storylab-engine/internal/testutil"
)

func newTestTracker(t *testing.T) (*Tracker, *testutil.MemoryStorage) {
	t.Helper()
	store := testutil.NewMemoryStorage()
	return NewTracker(store, nil, nil), store
}

func createTestExecution(t *testing.T, tracker *Tracker) *models.Execution {
	t.Helper()
	execution, err := tracker.Create(testutil.LinearRecipe(), map[string]interface{}{"x": 1}, models.ExecutionContext{
		ProjectID: "proj-1",
	})
	require.NoError(t, err)
	return execution
}

func TestTracker_CreateSeedsPendingNodeResults(t *testing.T) {
	tracker, _ := newTestTracker(t)

	execution := createTestExecution(t, tracker)

	assert.Equal(t, models.ExecutionStatusPending, execution.Status)
	assert.Equal(t, "proj-1", execution.ProjectID)
	require.Len(t, execution.NodeResults, 2)
	for _, result := range execution.NodeResults {
		assert.Equal(t, models.NodeStatusPending, result.Status)
	}
}

func TestTracker_StartTransitionsToRunning(t *testing.T) {
	tracker, _ := newTestTracker(t)
	execution := createTestExecution(t, tracker)

	require.NoError(t, tracker.Start(execution.ID))

	stored, err := tracker.Get(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, stored.Status)
	assert.NotNil(t, stored.StartedAt)
}

func TestTracker_TerminalNodeResultNeverOverwritten(t *testing.T) {
	tracker, _ := newTestTracker(t)
	execution := createTestExecution(t, tracker)

	require.NoError(t, tracker.RecordNodeResult(execution.ID, &models.NodeResult{
		NodeID: "first",
		Status: models.NodeStatusCompleted,
		Output: "original",
	}))

	// a later write for the same node must be ignored
	require.NoError(t, tracker.RecordNodeResult(execution.ID, &models.NodeResult{
		NodeID: "first",
		Status: models.NodeStatusFailed,
		Error:  "late failure",
	}))

	stored, err := tracker.Get(context.Background(), execution.ID)
	require.NoError(t, err)
	result := stored.NodeResults["first"]
	require.NotNil(t, result)
	assert.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.Equal(t, "original", result.Output)
	assert.Empty(t, result.Error)
}

func TestTracker_RecordRejectsNonTerminalResult(t *testing.T) {
	tracker, _ := newTestTracker(t)
	execution := createTestExecution(t, tracker)

	err := tracker.RecordNodeResult(execution.ID, &models.NodeResult{
		NodeID: "first",
		Status: models.NodeStatusRunning,
	})
	assert.Error(t, err)
}

func TestTracker_CompleteAttachesFinalOutput(t *testing.T) {
	tracker, _ := newTestTracker(t)
	execution := createTestExecution(t, tracker)

	require.NoError(t, tracker.Start(execution.ID))
	require.NoError(t, tracker.Complete(execution.ID, map[string]interface{}{"firstOut": 1}))

	stored, err := tracker.Get(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.EqualValues(t, 1, stored.FinalOutput["firstOut"])
}

func TestTracker_TerminalExecutionStaysTerminal(t *testing.T) {
	tracker, _ := newTestTracker(t)
	execution := createTestExecution(t, tracker)

	require.NoError(t, tracker.Start(execution.ID))
	require.NoError(t, tracker.Fail(execution.ID, "node exploded"))

	// completing a failed run must not change anything
	require.NoError(t, tracker.Complete(execution.ID, map[string]interface{}{"x": 1}))

	stored, err := tracker.Get(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
	assert.Equal(t, "node exploded", stored.Error)
	assert.Empty(t, stored.FinalOutput)
}

func TestTracker_GetUnknownExecution(t *testing.T) {
	tracker, _ := newTestTracker(t)

	_, err := tracker.Get(context.Background(), "exec-missing")
	assert.Error(t, err)
}

func TestTracker_SummaryCountsNodes(t *testing.T) {
	tracker, _ := newTestTracker(t)
	execution := createTestExecution(t, tracker)

	require.NoError(t, tracker.RecordNodeResult(execution.ID, &models.NodeResult{
		NodeID:     "first",
		Status:     models.NodeStatusCompleted,
		TokensUsed: 7,
	}))
	require.NoError(t, tracker.RecordNodeResult(execution.ID, &models.NodeResult{
		NodeID: "second",
		Status: models.NodeStatusFailed,
		Error:  "boom",
	}))

	require.NoError(t, tracker.Complete(execution.ID, map[string]interface{}{"firstOut": "done"}))

	summary, err := tracker.GetSummary(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.NodesTotal)
	assert.Equal(t, 1, summary.NodesCompleted)
	assert.Equal(t, 1, summary.NodesFailed)
	assert.Equal(t, 7, summary.TokensUsed)
	assert.Equal(t, map[string]interface{}{"firstOut": "done"}, summary.FinalOutput)
}

func TestTracker_RedisMirror(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := testutil.NewMemoryStorage()
	tracker := NewTracker(store, client, nil)

	execution, err := tracker.Create(testutil.LinearRecipe(), nil, models.ExecutionContext{})
	require.NoError(t, err)

	// the mirror serves reads even when storage is unavailable
	assert.True(t, mr.Exists("storylab:execution:"+execution.ID))

	mirrored, err := tracker.Get(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.ID, mirrored.ID)

	ttl := mr.TTL("storylab:execution:" + execution.ID)
	assert.Greater(t, ttl, time.Duration(0))
}
