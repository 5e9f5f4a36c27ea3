package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeType(t *testing.T) {
	assert.True(t, NodeTypeTextGeneration.Valid())
	assert.True(t, NodeTypeDataProcessing.Valid())
	assert.False(t, NodeType("teleportation").Valid())

	assert.True(t, NodeTypeImageGeneration.IsGeneration())
	assert.True(t, NodeTypeVideoGeneration.IsGeneration())
	assert.False(t, NodeTypeDataProcessing.IsGeneration())
}

func TestErrorHandling_PolicyDefaultsToFail(t *testing.T) {
	assert.Equal(t, ErrorPolicyFail, ErrorHandling{}.Policy())
	assert.Equal(t, ErrorPolicyFail, ErrorHandling{OnError: "unknown"}.Policy())
	assert.Equal(t, ErrorPolicySkip, ErrorHandling{OnError: ErrorPolicySkip}.Policy())
	assert.Equal(t, ErrorPolicyRetry, ErrorHandling{OnError: ErrorPolicyRetry}.Policy())
}

func TestErrorHandling_GetTimeout(t *testing.T) {
	def := 60 * time.Second

	assert.Equal(t, def, ErrorHandling{}.GetTimeout(def))
	assert.Equal(t, 30*time.Second, ErrorHandling{Timeout: "30s"}.GetTimeout(def))
	assert.Equal(t, def, ErrorHandling{Timeout: "soon"}.GetTimeout(def))
	assert.Equal(t, def, ErrorHandling{Timeout: "-5s"}.GetTimeout(def))
}

func TestNode_PromptText(t *testing.T) {
	assert.Equal(t, "p", (&Node{Prompt: "p"}).PromptText())
	assert.Equal(t, "t", (&Node{Prompt: "p", PromptTemplate: "t"}).PromptText())
	assert.Empty(t, (&Node{}).PromptText())
}

func TestRecipe_CloneIsDeep(t *testing.T) {
	original := &Recipe{
		ID:      "r",
		Name:    "n",
		Version: 2,
		Nodes: []Node{
			{ID: "a", Type: NodeTypeDataProcessing, OutputKey: "aOut",
				InputMapping: map[string]string{"x": "external_input.x"}},
		},
	}

	clone := original.Clone()
	require.NotNil(t, clone)

	clone.Nodes[0].InputMapping["x"] = "value:changed"
	clone.Nodes[0].OutputKey = "changed"

	assert.Equal(t, "external_input.x", original.Nodes[0].InputMapping["x"])
	assert.Equal(t, "aOut", original.Nodes[0].OutputKey)
}

func TestRecipe_NodeByID(t *testing.T) {
	rec := &Recipe{Nodes: []Node{{ID: "a"}, {ID: "b"}}}

	node := rec.NodeByID("b")
	require.NotNil(t, node)
	assert.Equal(t, "b", node.ID)

	assert.Nil(t, rec.NodeByID("c"))
}

func TestExecutionStatus_Terminal(t *testing.T) {
	assert.False(t, ExecutionStatusPending.Terminal())
	assert.False(t, ExecutionStatusRunning.Terminal())
	assert.True(t, ExecutionStatusCompleted.Terminal())
	assert.True(t, ExecutionStatusFailed.Terminal())
}

func TestExecution_TokensUsedAndSummary(t *testing.T) {
	started := time.Now().UTC().Add(-2 * time.Second)
	completed := time.Now().UTC()

	execution := &Execution{
		ID:        "exec-1",
		RecipeID:  "r",
		Status:    ExecutionStatusCompleted,
		StartedAt: &started, CompletedAt: &completed,
		NodeResults: map[string]*NodeResult{
			"a": {NodeID: "a", Status: NodeStatusCompleted, TokensUsed: 10},
			"b": {NodeID: "b", Status: NodeStatusCompleted, TokensUsed: 5},
			"c": {NodeID: "c", Status: NodeStatusFailed},
		},
	}

	assert.Equal(t, 15, execution.TokensUsed())

	summary := execution.Summary()
	assert.Equal(t, 3, summary.NodesTotal)
	assert.Equal(t, 2, summary.NodesCompleted)
	assert.Equal(t, 1, summary.NodesFailed)
	assert.Equal(t, 15, summary.TokensUsed)
	assert.GreaterOrEqual(t, summary.DurationMs, int64(2000))
}

func TestExecution_DurationWithoutStart(t *testing.T) {
	assert.Zero(t, (&Execution{}).Duration())
}
