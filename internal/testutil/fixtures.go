package testutil

import "storylab-engine/internal/models"

// LinearRecipe returns a two node recipe: a data_processing passthrough
// feeding a second passthrough through its outputKey.
func LinearRecipe() *models.Recipe {
	return &models.Recipe{
		ID:      "recipe-linear",
		Name:    "linear",
		Version: 1,
		Nodes: []models.Node{
			{
				ID:        "first",
				Type:      models.NodeTypeDataProcessing,
				OutputKey: "firstOut",
				InputMapping: map[string]string{
					"x": "external_input.x",
				},
			},
			{
				ID:           "second",
				Type:         models.NodeTypeDataProcessing,
				Dependencies: []string{"first"},
				OutputKey:    "secondOut",
				InputMapping: map[string]string{
					"y": "firstOut",
				},
			},
		},
	}
}

// DiamondRecipe returns a four node diamond: entry fans out to two branches
// that join at a merge node.
func DiamondRecipe() *models.Recipe {
	return &models.Recipe{
		ID:      "recipe-diamond",
		Name:    "diamond",
		Version: 1,
		Nodes: []models.Node{
			{
				ID:        "entry",
				Type:      models.NodeTypeDataProcessing,
				OutputKey: "entryOut",
				InputMapping: map[string]string{
					"seed": "external_input.seed",
				},
			},
			{
				ID:           "left",
				Type:         models.NodeTypeDataProcessing,
				Dependencies: []string{"entry"},
				OutputKey:    "leftOut",
				InputMapping: map[string]string{
					"in": "entryOut",
				},
			},
			{
				ID:           "right",
				Type:         models.NodeTypeDataProcessing,
				Dependencies: []string{"entry"},
				OutputKey:    "rightOut",
				InputMapping: map[string]string{
					"in": "entryOut",
				},
			},
			{
				ID:           "join",
				Type:         models.NodeTypeDataProcessing,
				Dependencies: []string{"left", "right"},
				OutputKey:    "joinOut",
				InputMapping: map[string]string{
					"a": "leftOut",
					"b": "rightOut",
				},
			},
		},
	}
}

// GenerationRecipe returns a single text generation node using the named
// provider.
func GenerationRecipe(provider string) *models.Recipe {
	return &models.Recipe{
		ID:      "recipe-generation",
		Name:    "generation",
		Version: 1,
		Nodes: []models.Node{
			{
				ID:        "write",
				Type:      models.NodeTypeTextGeneration,
				OutputKey: "textOut",
				Prompt:    "Write about {topic}",
				InputMapping: map[string]string{
					"topic": "external_input.topic",
				},
				AIModel: &models.AIModel{
					Provider:  provider,
					ModelName: "test-model",
				},
			},
		},
	}
}
