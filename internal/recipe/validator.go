package recipe

import (
	"fmt"
	"sort"
	"strings"

	"storylab-engine/internal/models"
)

// ValidationResult reports every structural violation found in a recipe.
// A recipe with Valid=false is never executed.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Validator checks recipe graphs for structural validity. All checks run and
// accumulate errors; validation never stops at the first violation.
type Validator struct{}

// NewValidator creates a recipe validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate runs all structural checks in order: node field sanity, id
// uniqueness, dependency referential integrity, input-mapping reachability,
// cycle detection, entry-point reachability, and edge consistency.
func (v *Validator) Validate(recipe *models.Recipe) ValidationResult {
	var errs []string

	if len(recipe.Nodes) == 0 {
		errs = append(errs, "recipe has no nodes")
		return ValidationResult{Valid: false, Errors: errs}
	}

	errs = append(errs, v.checkNodeFields(recipe)...)
	errs = append(errs, v.checkUniqueIDs(recipe)...)

	// Later checks assume referable ids; build the set of known nodes once.
	known := make(map[string]*models.Node, len(recipe.Nodes))
	for i := range recipe.Nodes {
		known[recipe.Nodes[i].ID] = &recipe.Nodes[i]
	}

	errs = append(errs, v.checkDependencies(recipe, known)...)
	errs = append(errs, v.checkInputMappings(recipe, known)...)
	errs = append(errs, v.checkCycles(recipe, known)...)
	errs = append(errs, v.checkReachability(recipe, known)...)
	errs = append(errs, v.checkEdges(recipe, known)...)

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func (v *Validator) checkNodeFields(recipe *models.Recipe) []string {
	var errs []string
	outputKeys := make(map[string]string)

	for i := range recipe.Nodes {
		node := &recipe.Nodes[i]

		if node.ID == "" {
			errs = append(errs, fmt.Sprintf("node at index %d has empty id", i))
			continue
		}
		if !node.Type.Valid() {
			errs = append(errs, fmt.Sprintf("node '%s' has unknown type '%s'", node.ID, node.Type))
		}
		if node.OutputKey == "" {
			errs = append(errs, fmt.Sprintf("node '%s' has empty outputKey", node.ID))
		} else if prev, dup := outputKeys[node.OutputKey]; dup {
			errs = append(errs, fmt.Sprintf("nodes '%s' and '%s' declare the same outputKey '%s'", prev, node.ID, node.OutputKey))
		} else {
			outputKeys[node.OutputKey] = node.ID
		}

		if node.ErrorHandling.RetryCount < 0 {
			errs = append(errs, fmt.Sprintf("node '%s' has negative retryCount", node.ID))
		}

		if node.Type.IsGeneration() {
			if node.AIModel == nil {
				errs = append(errs, fmt.Sprintf("generation node '%s' is missing aiModel", node.ID))
			} else {
				if node.AIModel.Provider == "" {
					errs = append(errs, fmt.Sprintf("generation node '%s' has empty aiModel.provider", node.ID))
				}
				if node.AIModel.Temperature < 0 || node.AIModel.Temperature > 1 {
					errs = append(errs, fmt.Sprintf("node '%s' temperature %v outside [0,1]", node.ID, node.AIModel.Temperature))
				}
			}
			if node.PromptText() == "" {
				errs = append(errs, fmt.Sprintf("generation node '%s' has no prompt or promptTemplate", node.ID))
			}
		}
	}

	return errs
}

func (v *Validator) checkUniqueIDs(recipe *models.Recipe) []string {
	var errs []string
	seen := make(map[string]bool)

	for i := range recipe.Nodes {
		id := recipe.Nodes[i].ID
		if id == "" {
			continue
		}
		if seen[id] {
			errs = append(errs, fmt.Sprintf("duplicate node id '%s'", id))
		}
		seen[id] = true
	}

	return errs
}

func (v *Validator) checkDependencies(recipe *models.Recipe, known map[string]*models.Node) []string {
	var errs []string

	for i := range recipe.Nodes {
		node := &recipe.Nodes[i]
		for _, dep := range node.Dependencies {
			if dep == node.ID {
				errs = append(errs, fmt.Sprintf("node '%s' depends on itself", node.ID))
				continue
			}
			if _, ok := known[dep]; !ok {
				errs = append(errs, fmt.Sprintf("node '%s' depends on non-existent node '%s'", node.ID, dep))
			}
		}
	}

	return errs
}

// checkInputMappings verifies that every non-external, non-literal source
// reference names the outputKey of a node the consumer transitively depends
// on. Consuming an output outside the dependency chain would read data with
// no ordering guarantee.
func (v *Validator) checkInputMappings(recipe *models.Recipe, known map[string]*models.Node) []string {
	var errs []string

	// outputKey -> producing node id
	producers := make(map[string]string)
	for id, node := range known {
		if node.OutputKey != "" {
			producers[node.OutputKey] = id
		}
	}

	for i := range recipe.Nodes {
		node := &recipe.Nodes[i]
		reachable := transitiveDeps(node.ID, known)

		params := make([]string, 0, len(node.InputMapping))
		for param := range node.InputMapping {
			params = append(params, param)
		}
		sort.Strings(params)

		for _, param := range params {
			ref := node.InputMapping[param]
			if strings.HasPrefix(ref, "external_input.") || strings.HasPrefix(ref, "value:") {
				continue
			}

			producer, ok := producers[ref]
			if !ok {
				errs = append(errs, fmt.Sprintf("node '%s' input '%s' references unknown output '%s'", node.ID, param, ref))
				continue
			}
			if !reachable[producer] {
				errs = append(errs, fmt.Sprintf("node '%s' input '%s' reads output '%s' of node '%s' which is not among its dependencies", node.ID, param, ref, producer))
			}
		}
	}

	return errs
}

// checkCycles runs a depth-first traversal with a recursion-stack marker;
// any back-edge to a node currently on the stack is a cycle.
func (v *Validator) checkCycles(recipe *models.Recipe, known map[string]*models.Node) []string {
	var errs []string

	const (
		white = 0 // unvisited
		grey  = 1 // on stack
		black = 2 // done
	)
	color := make(map[string]int, len(known))

	var visit func(id string, path []string)
	visit = func(id string, path []string) {
		color[id] = grey
		node := known[id]
		for _, dep := range node.Dependencies {
			if _, ok := known[dep]; !ok || dep == id {
				continue // reported by checkDependencies
			}
			switch color[dep] {
			case white:
				visit(dep, append(path, dep))
			case grey:
				errs = append(errs, fmt.Sprintf("dependency cycle detected involving node '%s'", dep))
			}
		}
		color[id] = black
	}

	ids := make([]string, 0, len(known))
	for id := range known {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if color[id] == white {
			visit(id, []string{id})
		}
	}

	return errs
}

// checkReachability verifies every node is reachable from the entry set
// (nodes with no dependencies) by walking dependency edges forward. A node
// whose dependency chain never grounds out at an entry node is unreachable.
// Nodes with no dependencies are legitimate entry points, never errors.
func (v *Validator) checkReachability(recipe *models.Recipe, known map[string]*models.Node) []string {
	var errs []string

	reached := make(map[string]bool)
	var queue []string

	for id, node := range known {
		if len(node.Dependencies) == 0 {
			reached[id] = true
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	// forward adjacency: dep -> dependents
	dependents := make(map[string][]string)
	for id, node := range known {
		for _, dep := range node.Dependencies {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range dependents[id] {
			if reached[next] {
				continue
			}
			// reachable only once every dependency is reachable
			allReached := true
			for _, dep := range known[next].Dependencies {
				if _, ok := known[dep]; ok && !reached[dep] {
					allReached = false
					break
				}
			}
			if allReached {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}

	ids := make([]string, 0, len(known))
	for id := range known {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if !reached[id] {
			errs = append(errs, fmt.Sprintf("node '%s' is unreachable from any entry node", id))
		}
	}

	return errs
}

// checkEdges verifies that declared edges are consistent with dependencies:
// every edge (from, to) must match 'to' depending on 'from'. Edges are
// display data; a mismatch means the drawn graph lies about execution.
func (v *Validator) checkEdges(recipe *models.Recipe, known map[string]*models.Node) []string {
	var errs []string

	for _, edge := range recipe.Edges {
		to, ok := known[edge.To]
		if !ok {
			errs = append(errs, fmt.Sprintf("edge references non-existent node '%s'", edge.To))
			continue
		}
		if _, ok := known[edge.From]; !ok {
			errs = append(errs, fmt.Sprintf("edge references non-existent node '%s'", edge.From))
			continue
		}

		found := false
		for _, dep := range to.Dependencies {
			if dep == edge.From {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, fmt.Sprintf("edge %s->%s has no matching dependency on node '%s'", edge.From, edge.To, edge.To))
		}
	}

	return errs
}

// transitiveDeps returns the set of nodes reachable from id by walking
// dependencies. Tolerates cycles and dangling references; those are reported
// by their own checks.
func transitiveDeps(id string, known map[string]*models.Node) map[string]bool {
	reachable := make(map[string]bool)
	var walk func(cur string)
	walk = func(cur string) {
		node, ok := known[cur]
		if !ok {
			return
		}
		for _, dep := range node.Dependencies {
			if reachable[dep] || dep == cur {
				continue
			}
			reachable[dep] = true
			walk(dep)
		}
	}
	walk(id)
	return reachable
}
