package recipe

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"storylab-engine/internal/common/errors"
	"storylab-engine/internal/common/logging"
	"storylab-engine/internal/common/utils"
	"storylab-engine/internal/models"
	"storylab-engine/internal/storage"
)

const (
	cacheTTL     = 5 * time.Minute
	cacheCleanup = 10 * time.Minute
	cacheKeyPref = "recipe:"
)

// Store manages recipe definitions: validated CRUD over the storage backend
// with a read-through cache for hot definitions. Updates bump the version so
// executions can pin the exact definition they ran.
type Store struct {
	storage   storage.Storage
	validator *Validator
	cache     *gocache.Cache
	logger    logging.Logger
}

// NewStore creates a recipe store backed by the given storage.
func NewStore(store storage.Storage, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Store{
		storage:   store,
		validator: NewValidator(),
		cache:     gocache.New(cacheTTL, cacheCleanup),
		logger:    logger,
	}
}

// Validator exposes the store's validator for pre-flight validation calls.
func (s *Store) Validator() *Validator {
	return s.validator
}

// Create validates and persists a new recipe. A recipe failing validation is
// rejected before any write.
func (s *Store) Create(recipe *models.Recipe) (*models.Recipe, error) {
	if recipe.Name == "" {
		return nil, errors.ValidationError("recipe name is required")
	}

	if result := s.validator.Validate(recipe); !result.Valid {
		return nil, errors.ValidationError("recipe is invalid: " + strings.Join(result.Errors, "; "))
	}

	if recipe.ID == "" {
		recipe.ID = utils.NewRecipeID()
	}
	if recipe.Version == 0 {
		recipe.Version = 1
	}

	if err := s.storage.CreateRecipe(recipe); err != nil {
		return nil, errors.InternalError("failed to persist recipe", err)
	}

	s.cache.Set(cacheKeyPref+recipe.ID, recipe, gocache.DefaultExpiration)
	s.logger.Info("Recipe created",
		logging.Field{Key: "recipe_id", Value: recipe.ID},
		logging.Field{Key: "name", Value: recipe.Name},
		logging.Field{Key: "nodes", Value: len(recipe.Nodes)},
	)

	return recipe, nil
}

// Get returns a deep copy of a recipe, from cache when possible.
func (s *Store) Get(id string) (*models.Recipe, error) {
	if cached, found := s.cache.Get(cacheKeyPref + id); found {
		if recipe, ok := cached.(*models.Recipe); ok {
			return recipe.Clone(), nil
		}
	}

	recipe, err := s.storage.GetRecipe(id)
	if err != nil {
		return nil, errors.NotFoundError("recipe " + id)
	}

	s.cache.Set(cacheKeyPref+id, recipe, gocache.DefaultExpiration)
	return recipe.Clone(), nil
}

// List returns recipes matching the filters, paginated.
func (s *Store) List(filters models.RecipeFilters, limit, offset int) ([]*models.Recipe, int, error) {
	recipes, total, err := s.storage.ListRecipesPaginated(filters, limit, offset)
	if err != nil {
		return nil, 0, errors.InternalError("failed to list recipes", err)
	}
	return recipes, total, nil
}

// Update validates and persists a modified recipe, bumping its version.
func (s *Store) Update(recipe *models.Recipe) (*models.Recipe, error) {
	existing, err := s.storage.GetRecipe(recipe.ID)
	if err != nil {
		return nil, errors.NotFoundError("recipe " + recipe.ID)
	}

	if result := s.validator.Validate(recipe); !result.Valid {
		return nil, errors.ValidationError("recipe is invalid: " + strings.Join(result.Errors, "; "))
	}

	recipe.Version = existing.Version + 1
	recipe.CreatedAt = existing.CreatedAt

	if err := s.storage.UpdateRecipe(recipe); err != nil {
		return nil, errors.InternalError("failed to update recipe", err)
	}

	s.cache.Set(cacheKeyPref+recipe.ID, recipe, gocache.DefaultExpiration)
	s.logger.Info("Recipe updated",
		logging.Field{Key: "recipe_id", Value: recipe.ID},
		logging.Field{Key: "version", Value: recipe.Version},
	)

	return recipe, nil
}

// Delete removes a recipe definition. Past executions are retained.
func (s *Store) Delete(id string) error {
	if err := s.storage.DeleteRecipe(id); err != nil {
		return errors.NotFoundError("recipe " + id)
	}
	s.cache.Delete(cacheKeyPref + id)
	s.logger.Info("Recipe deleted", logging.Field{Key: "recipe_id", Value: id})
	return nil
}

// Stats aggregates execution outcomes for a recipe.
func (s *Store) Stats(id string) (*models.RecipeStats, error) {
	stats, err := s.storage.GetRecipeStats(id)
	if err != nil {
		return nil, errors.InternalError("failed to aggregate recipe stats", err)
	}
	return stats, nil
}
