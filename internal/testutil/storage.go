// Package testutil provides an in-memory storage backend and recipe
// fixtures for package tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"storylab-engine/internal/models"
	"storylab-engine/internal/storage"
)

// MemoryStorage implements storage.Storage backed by maps. Documents are
// deep-copied through JSON on every read and write so tests cannot alias
// stored state.
type MemoryStorage struct {
	mu         sync.Mutex
	recipes    map[string]*models.Recipe
	executions map[string]*models.Execution

	// FailNext, when set, makes the next mutating call return this error.
	FailNext error
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		recipes:    make(map[string]*models.Recipe),
		executions: make(map[string]*models.Execution),
	}
}

func copyDoc[T any](src *T) *T {
	data, _ := json.Marshal(src)
	dst := new(T)
	_ = json.Unmarshal(data, dst)
	return dst
}

func (m *MemoryStorage) takeFailure() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

func (m *MemoryStorage) Connect(config storage.StorageConfig) error { return nil }
func (m *MemoryStorage) Close() error                               { return nil }
func (m *MemoryStorage) Health() error                              { return nil }

func (m *MemoryStorage) CreateRecipe(recipe *models.Recipe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if _, exists := m.recipes[recipe.ID]; exists {
		return fmt.Errorf("recipe already exists: %s", recipe.ID)
	}
	now := time.Now().UTC()
	recipe.CreatedAt = now
	recipe.UpdatedAt = now
	m.recipes[recipe.ID] = copyDoc(recipe)
	return nil
}

func (m *MemoryStorage) GetRecipe(id string) (*models.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recipe, ok := m.recipes[id]
	if !ok {
		return nil, fmt.Errorf("recipe not found: %s", id)
	}
	return copyDoc(recipe), nil
}

func (m *MemoryStorage) ListRecipesPaginated(filters models.RecipeFilters, limit, offset int) ([]*models.Recipe, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*models.Recipe
	for _, recipe := range m.recipes {
		if filters.StageType != "" && recipe.StageType != filters.StageType {
			continue
		}
		matched = append(matched, copyDoc(recipe))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	matched = window(matched, limit, offset)
	return matched, total, nil
}

func (m *MemoryStorage) UpdateRecipe(recipe *models.Recipe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if _, ok := m.recipes[recipe.ID]; !ok {
		return fmt.Errorf("recipe not found: %s", recipe.ID)
	}
	recipe.UpdatedAt = time.Now().UTC()
	m.recipes[recipe.ID] = copyDoc(recipe)
	return nil
}

func (m *MemoryStorage) DeleteRecipe(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recipes[id]; !ok {
		return fmt.Errorf("recipe not found: %s", id)
	}
	delete(m.recipes, id)
	return nil
}

func (m *MemoryStorage) CreateExecution(execution *models.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	now := time.Now().UTC()
	execution.CreatedAt = now
	execution.UpdatedAt = now
	m.executions[execution.ID] = copyDoc(execution)
	return nil
}

func (m *MemoryStorage) GetExecution(id string) (*models.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	execution, ok := m.executions[id]
	if !ok {
		return nil, fmt.Errorf("execution not found: %s", id)
	}
	return copyDoc(execution), nil
}

func (m *MemoryStorage) UpdateExecution(execution *models.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if _, ok := m.executions[execution.ID]; !ok {
		return fmt.Errorf("execution not found: %s", execution.ID)
	}
	execution.UpdatedAt = time.Now().UTC()
	m.executions[execution.ID] = copyDoc(execution)
	return nil
}

func (m *MemoryStorage) ListExecutions(filters models.ExecutionFilters, limit, offset int) ([]*models.Execution, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*models.Execution
	for _, execution := range m.executions {
		if filters.RecipeID != "" && execution.RecipeID != filters.RecipeID {
			continue
		}
		if filters.ProjectID != "" && execution.ProjectID != filters.ProjectID {
			continue
		}
		if filters.Status != "" && execution.Status != filters.Status {
			continue
		}
		matched = append(matched, copyDoc(execution))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	matched = window(matched, limit, offset)
	return matched, total, nil
}

func (m *MemoryStorage) DeleteExecutionsBefore(cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for id, execution := range m.executions {
		if execution.CompletedAt != nil && execution.CompletedAt.Before(cutoff) {
			delete(m.executions, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStorage) GetRecipeStats(recipeID string) (*models.RecipeStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &models.RecipeStats{RecipeID: recipeID}
	var totalMs float64
	timed := 0

	for _, execution := range m.executions {
		if execution.RecipeID != recipeID {
			continue
		}
		stats.TotalRuns++
		switch execution.Status {
		case models.ExecutionStatusCompleted:
			stats.CompletedRuns++
		case models.ExecutionStatusFailed:
			stats.FailedRuns++
		}
		if execution.StartedAt != nil && execution.CompletedAt != nil {
			totalMs += float64(execution.CompletedAt.Sub(*execution.StartedAt).Milliseconds())
			timed++
		}
	}
	if timed > 0 {
		stats.AvgDurationMs = totalMs / float64(timed)
	}
	return stats, nil
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
