package recipe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storylab-engine/internal/models"
	"storylab-engine/internal/testutil"
)

func assertHasError(t *testing.T, result ValidationResult, substr string) {
	t.Helper()
	for _, e := range result.Errors {
		if strings.Contains(e, substr) {
			return
		}
	}
	t.Errorf("expected validation error containing %q, got %v", substr, result.Errors)
}

func TestValidator_ValidRecipes(t *testing.T) {
	v := NewValidator()

	for _, rec := range []*models.Recipe{
		testutil.LinearRecipe(),
		testutil.DiamondRecipe(),
		testutil.GenerationRecipe("static"),
	} {
		result := v.Validate(rec)
		assert.True(t, result.Valid, "recipe %s: %v", rec.Name, result.Errors)
		assert.Empty(t, result.Errors)
	}
}

func TestValidator_EmptyRecipe(t *testing.T) {
	result := NewValidator().Validate(&models.Recipe{ID: "r", Name: "empty"})
	assert.False(t, result.Valid)
	assertHasError(t, result, "no nodes")
}

func TestValidator_DuplicateNodeIDs(t *testing.T) {
	rec := testutil.LinearRecipe()
	rec.Nodes[1].ID = "first"
	rec.Nodes[1].OutputKey = "otherOut"
	rec.Nodes[1].Dependencies = nil
	rec.Nodes[1].InputMapping = nil

	result := NewValidator().Validate(rec)
	assert.False(t, result.Valid)
	assertHasError(t, result, "duplicate")
}

func TestValidator_UnknownDependency(t *testing.T) {
	rec := testutil.LinearRecipe()
	rec.Nodes[1].Dependencies = []string{"ghost"}
	rec.Nodes[1].InputMapping = nil

	result := NewValidator().Validate(rec)
	assert.False(t, result.Valid)
	assertHasError(t, result, "ghost")
}

func TestValidator_SelfDependency(t *testing.T) {
	rec := testutil.LinearRecipe()
	rec.Nodes[0].Dependencies = []string{"first"}

	result := NewValidator().Validate(rec)
	assert.False(t, result.Valid)
	assertHasError(t, result, "itself")
}

func TestValidator_CycleDetected(t *testing.T) {
	rec := testutil.LinearRecipe()
	rec.Nodes[0].Dependencies = []string{"second"}

	result := NewValidator().Validate(rec)
	assert.False(t, result.Valid)
	assertHasError(t, result, "cycle")
}

func TestValidator_InputMappingMustComeFromDependency(t *testing.T) {
	// join reads leftOut but only depends on right
	rec := testutil.DiamondRecipe()
	rec.Nodes[3].Dependencies = []string{"right"}

	result := NewValidator().Validate(rec)
	assert.False(t, result.Valid)
	assertHasError(t, result, "leftOut")
}

func TestValidator_InputMappingTransitiveDependencyAllowed(t *testing.T) {
	// second also reads the entry output of a chain through its transitive
	// dependency, which is legal
	rec := &models.Recipe{
		ID: "r", Name: "chain", Version: 1,
		Nodes: []models.Node{
			{ID: "a", Type: models.NodeTypeDataProcessing, OutputKey: "aOut"},
			{ID: "b", Type: models.NodeTypeDataProcessing, OutputKey: "bOut",
				Dependencies: []string{"a"},
				InputMapping: map[string]string{"in": "aOut"}},
			{ID: "c", Type: models.NodeTypeDataProcessing, OutputKey: "cOut",
				Dependencies: []string{"b"},
				InputMapping: map[string]string{"root": "aOut", "prev": "bOut"}},
		},
	}

	result := NewValidator().Validate(rec)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
}

func TestValidator_UnknownOutputKeyReference(t *testing.T) {
	rec := testutil.LinearRecipe()
	rec.Nodes[1].InputMapping["y"] = "nonsenseKey"

	result := NewValidator().Validate(rec)
	assert.False(t, result.Valid)
	assertHasError(t, result, "nonsenseKey")
}

func TestValidator_LiteralAndExternalReferencesAlwaysResolvable(t *testing.T) {
	rec := testutil.LinearRecipe()
	rec.Nodes[0].InputMapping = map[string]string{
		"flag": "value:true",
		"seed": "external_input.anything",
	}

	result := NewValidator().Validate(rec)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
}

func TestValidator_OrphanNodeIsEntryPoint(t *testing.T) {
	// a node with no dependencies and no dependents is a legitimate entry
	rec := testutil.LinearRecipe()
	rec.Nodes = append(rec.Nodes, models.Node{
		ID:        "orphan",
		Type:      models.NodeTypeDataProcessing,
		OutputKey: "orphanOut",
	})

	result := NewValidator().Validate(rec)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
}

func TestValidator_GenerationNodeNeedsModelAndPrompt(t *testing.T) {
	rec := testutil.GenerationRecipe("static")
	rec.Nodes[0].AIModel = nil
	rec.Nodes[0].Prompt = ""

	result := NewValidator().Validate(rec)
	assert.False(t, result.Valid)
	assertHasError(t, result, "aiModel")
	assertHasError(t, result, "prompt")
}

func TestValidator_TemperatureRange(t *testing.T) {
	rec := testutil.GenerationRecipe("static")
	rec.Nodes[0].AIModel.Temperature = 1.5

	result := NewValidator().Validate(rec)
	assert.False(t, result.Valid)
	assertHasError(t, result, "temperature")
}

func TestValidator_DuplicateOutputKeys(t *testing.T) {
	rec := testutil.LinearRecipe()
	rec.Nodes[1].OutputKey = "firstOut"

	result := NewValidator().Validate(rec)
	assert.False(t, result.Valid)
	assertHasError(t, result, "firstOut")
}

func TestValidator_EdgeMustMatchDependency(t *testing.T) {
	rec := testutil.LinearRecipe()
	rec.Edges = []models.Edge{{From: "second", To: "first"}}

	result := NewValidator().Validate(rec)
	assert.False(t, result.Valid)
	assertHasError(t, result, "edge")
}

func TestValidator_AccumulatesAllErrors(t *testing.T) {
	rec := testutil.LinearRecipe()
	rec.Nodes[0].OutputKey = ""
	rec.Nodes[1].Dependencies = []string{"ghost"}
	rec.Nodes[1].Type = "teleportation"

	result := NewValidator().Validate(rec)
	require.False(t, result.Valid)
	assert.GreaterOrEqual(t, len(result.Errors), 3)
}
