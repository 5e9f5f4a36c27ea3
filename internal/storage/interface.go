// Package storage defines the persistence contract for recipe definitions
// and execution records. Backends store both as documents (JSON blobs keyed
// by id); no cross-document transactions are assumed.
package storage

import (
	"time"

	"storylab-engine/internal/models"
)

// StorageConfig is implemented by backend-specific configuration types.
type StorageConfig interface {
	Validate() error
	GetType() string
	GetConnectionString() string
}

// Storage is the persistence interface used by the recipe store and the
// execution tracker.
type Storage interface {
	// Connection management
	Connect(config StorageConfig) error
	Close() error
	Health() error

	// Recipe definitions
	CreateRecipe(recipe *models.Recipe) error
	GetRecipe(id string) (*models.Recipe, error)
	ListRecipesPaginated(filters models.RecipeFilters, limit, offset int) ([]*models.Recipe, int, error)
	UpdateRecipe(recipe *models.Recipe) error
	DeleteRecipe(id string) error

	// Executions
	CreateExecution(execution *models.Execution) error
	GetExecution(id string) (*models.Execution, error)
	UpdateExecution(execution *models.Execution) error
	ListExecutions(filters models.ExecutionFilters, limit, offset int) ([]*models.Execution, int, error)
	DeleteExecutionsBefore(cutoff time.Time) (int, error)

	// Stats
	GetRecipeStats(recipeID string) (*models.RecipeStats, error)
}

// StorageFactory creates storage adapters from backend configs.
type StorageFactory interface {
	Create(config StorageConfig) (Storage, error)
	GetType() string
}
