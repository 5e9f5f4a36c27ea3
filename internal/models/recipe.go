// Package models holds the recipe and execution domain types shared by the
// validator, engine, storage adapters, and HTTP handlers. Everything here is
// JSON-serializable; storage backends persist these structs as documents.
package models

import (
	"encoding/json"
	"time"
)

// NodeType identifies what a node does when executed.
type NodeType string

const (
	NodeTypeTextGeneration  NodeType = "text_generation"
	NodeTypeImageGeneration NodeType = "image_generation"
	NodeTypeVideoGeneration NodeType = "video_generation"
	NodeTypeDataProcessing  NodeType = "data_processing"
)

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeTextGeneration, NodeTypeImageGeneration, NodeTypeVideoGeneration, NodeTypeDataProcessing:
		return true
	}
	return false
}

// IsGeneration reports whether t calls an external AI provider.
func (t NodeType) IsGeneration() bool {
	return t == NodeTypeTextGeneration || t == NodeTypeImageGeneration || t == NodeTypeVideoGeneration
}

// ErrorPolicy controls what the orchestrator does when a node fails.
type ErrorPolicy string

const (
	// ErrorPolicyFail stops the run and fails every downstream node.
	ErrorPolicyFail ErrorPolicy = "fail"
	// ErrorPolicySkip marks the node and its dependents failed but lets
	// independent branches keep running.
	ErrorPolicySkip ErrorPolicy = "skip"
	// ErrorPolicyRetry re-attempts the node before falling back to fail.
	ErrorPolicyRetry ErrorPolicy = "retry"
)

// ErrorHandling is a node's failure policy. Timeout is a Go duration string
// such as "30s"; empty means the engine default applies.
type ErrorHandling struct {
	OnError    ErrorPolicy `json:"onError,omitempty"`
	RetryCount int         `json:"retryCount,omitempty"`
	Timeout    string      `json:"timeout,omitempty"`
}

// Policy returns the effective policy, defaulting to fail.
func (e ErrorHandling) Policy() ErrorPolicy {
	switch e.OnError {
	case ErrorPolicySkip, ErrorPolicyRetry:
		return e.OnError
	}
	return ErrorPolicyFail
}

// GetTimeout parses the node timeout, falling back to def when unset or
// unparseable.
func (e ErrorHandling) GetTimeout(def time.Duration) time.Duration {
	if e.Timeout == "" {
		return def
	}
	d, err := time.ParseDuration(e.Timeout)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// AIModel describes which provider and model a generation node calls.
type AIModel struct {
	Provider    string  `json:"provider"`
	ModelName   string  `json:"modelName"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
}

// Node is one step in a recipe. Dependencies name the nodes whose completion
// gates this one; InputMapping binds parameter names to references resolved
// at execution time.
type Node struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name,omitempty"`
	Type           NodeType               `json:"type"`
	Order          int                    `json:"order,omitempty"`
	Dependencies   []string               `json:"dependencies,omitempty"`
	InputMapping   map[string]string      `json:"inputMapping,omitempty"`
	OutputKey      string                 `json:"outputKey"`
	ErrorHandling  ErrorHandling          `json:"errorHandling,omitempty"`
	AIModel        *AIModel               `json:"aiModel,omitempty"`
	Prompt         string                 `json:"prompt,omitempty"`
	PromptTemplate string                 `json:"promptTemplate,omitempty"`
	Parameters     map[string]interface{} `json:"parameters,omitempty"`
}

// PromptText returns the template to substitute into, preferring
// promptTemplate over prompt.
func (n *Node) PromptText() string {
	if n.PromptTemplate != "" {
		return n.PromptTemplate
	}
	return n.Prompt
}

// Edge is a redundant visual connection mirroring a dependency pair.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Recipe is a versioned DAG of nodes. Edges carry no execution semantics;
// Dependencies are authoritative.
type Recipe struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StageType string    `json:"stageType,omitempty"`
	Version   int       `json:"version"`
	Nodes     []Node    `json:"nodes"`
	Edges     []Edge    `json:"edges,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NodeByID returns the node with the given id, or nil.
func (r *Recipe) NodeByID(id string) *Node {
	for i := range r.Nodes {
		if r.Nodes[i].ID == id {
			return &r.Nodes[i]
		}
	}
	return nil
}

// Clone deep-copies the recipe through a JSON round trip. Used by the cache
// so callers cannot mutate shared entries.
func (r *Recipe) Clone() *Recipe {
	data, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	var clone Recipe
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil
	}
	return &clone
}

// RecipeFilters narrows recipe listings.
type RecipeFilters struct {
	StageType string
	Name      string
}

// RecipeStats aggregates execution outcomes for one recipe.
type RecipeStats struct {
	RecipeID      string  `json:"recipeId"`
	TotalRuns     int     `json:"totalRuns"`
	CompletedRuns int     `json:"completedRuns"`
	FailedRuns    int     `json:"failedRuns"`
	AvgDurationMs float64 `json:"avgDurationMs"`
}
