// Package recipe holds the recipe definition store, the dependency DAG, and
// the structural validator that gates every execution.
package recipe

import (
	"fmt"
	"sort"

	"github.com/heimdalr/dag"

	"storylab-engine/internal/models"
)

// DAG wraps the dependency graph of a recipe's nodes. Edges run from a
// dependency to its dependents, so ancestors are dependencies.
type DAG struct {
	graph     *dag.DAG
	nodes     map[string]*models.Node
	vertexIDs map[string]string // node ID -> vertex ID
	nodeIDs   map[string]string // vertex ID -> node ID
}

// NewDAG builds the dependency graph for a recipe. The recipe must already
// have passed validation; construction errors here indicate a validator gap.
func NewDAG(recipe *models.Recipe) (*DAG, error) {
	d := &DAG{
		graph:     dag.NewDAG(),
		nodes:     make(map[string]*models.Node),
		vertexIDs: make(map[string]string),
		nodeIDs:   make(map[string]string),
	}

	for i := range recipe.Nodes {
		node := &recipe.Nodes[i]
		if _, exists := d.nodes[node.ID]; exists {
			return nil, fmt.Errorf("duplicate node ID: %s", node.ID)
		}

		vertexID, err := d.graph.AddVertex(node.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to add node '%s': %w", node.ID, err)
		}

		d.nodes[node.ID] = node
		d.vertexIDs[node.ID] = vertexID
		d.nodeIDs[vertexID] = node.ID
	}

	for _, node := range recipe.Nodes {
		for _, dep := range node.Dependencies {
			if _, exists := d.nodes[dep]; !exists {
				return nil, fmt.Errorf("node '%s' depends on non-existent node '%s'", node.ID, dep)
			}

			// dep must complete before node, so the edge runs dep -> node
			err := d.graph.AddEdge(d.vertexIDs[dep], d.vertexIDs[node.ID])
			if err != nil {
				return nil, fmt.Errorf("adding edge from '%s' to '%s' failed: %w", dep, node.ID, err)
			}
		}
	}

	return d, nil
}

// ExecutionPlan returns batches of node IDs; nodes within a batch have no
// dependency relationship and may execute concurrently. Batches are in
// topological order and sorted for determinism.
func (d *DAG) ExecutionPlan() ([][]string, error) {
	var plan [][]string
	completed := make(map[string]bool)
	remaining := make(map[string]bool)

	for id := range d.nodes {
		remaining[id] = true
	}

	for len(remaining) > 0 {
		batch := []string{}

		for id := range remaining {
			canRun := true

			for _, dep := range d.Dependencies(id) {
				if !completed[dep] {
					canRun = false
					break
				}
			}

			if canRun {
				batch = append(batch, id)
			}
		}

		if len(batch) == 0 {
			// Unreachable once validation passed
			return nil, fmt.Errorf("deadlock detected in execution plan")
		}

		sort.Strings(batch)

		for _, id := range batch {
			completed[id] = true
			delete(remaining, id)
		}

		plan = append(plan, batch)
	}

	return plan, nil
}

// Node returns a node definition by ID.
func (d *DAG) Node(id string) (*models.Node, bool) {
	node, ok := d.nodes[id]
	return node, ok
}

// Dependencies returns all nodes the given node depends on, directly or
// transitively.
func (d *DAG) Dependencies(nodeID string) []string {
	vertexID, exists := d.vertexIDs[nodeID]
	if !exists {
		return []string{}
	}

	ancestors, err := d.graph.GetAncestors(vertexID)
	if err != nil {
		return []string{}
	}

	deps := make([]string, 0, len(ancestors))
	for ancVertexID := range ancestors {
		if ancNodeID, ok := d.nodeIDs[ancVertexID]; ok {
			deps = append(deps, ancNodeID)
		}
	}
	return deps
}

// Dependents returns all nodes that depend on the given node, directly or
// transitively. The abort path uses it to tell cascade failures apart from
// nodes a shutdown merely kept from running.
func (d *DAG) Dependents(nodeID string) []string {
	vertexID, exists := d.vertexIDs[nodeID]
	if !exists {
		return []string{}
	}

	descendants, err := d.graph.GetDescendants(vertexID)
	if err != nil {
		return []string{}
	}

	dependents := make([]string, 0, len(descendants))
	for descVertexID := range descendants {
		if descNodeID, ok := d.nodeIDs[descVertexID]; ok {
			dependents = append(dependents, descNodeID)
		}
	}
	return dependents
}
