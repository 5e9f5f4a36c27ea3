// Package sqlite implements the storage interface on SQLite. Recipes and
// executions are stored as JSON documents with a few indexed columns pulled
// out for filtering and stats.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"storylab-engine/internal/models"
	"storylab-engine/internal/storage"
)

type Adapter struct {
	db     *sql.DB
	config *storage.SQLiteConfig
}

func NewAdapter(config *storage.SQLiteConfig) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{
		db:     db,
		config: config,
	}

	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) Connect(config storage.StorageConfig) error {
	sqliteConfig, ok := config.(*storage.SQLiteConfig)
	if !ok {
		return fmt.Errorf("invalid config type for SQLite storage")
	}

	newAdapter, err := NewAdapter(sqliteConfig)
	if err != nil {
		return err
	}

	if a.db != nil {
		a.db.Close()
	}

	a.db = newAdapter.db
	a.config = newAdapter.config

	return nil
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health() error {
	return a.db.Ping()
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS recipes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			stage_type TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1,
			definition TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			recipe_id TEXT NOT NULL,
			project_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			document TEXT NOT NULL,
			started_at DATETIME,
			completed_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recipes_stage_type ON recipes(stage_type)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_recipe ON executions(recipe_id)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_project ON executions(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Recipes

func (a *Adapter) CreateRecipe(recipe *models.Recipe) error {
	now := time.Now().UTC()
	recipe.CreatedAt = now
	recipe.UpdatedAt = now

	definition, err := json.Marshal(recipe)
	if err != nil {
		return fmt.Errorf("failed to marshal recipe: %w", err)
	}

	_, err = a.db.Exec(
		`INSERT INTO recipes (id, name, stage_type, version, definition, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		recipe.ID, recipe.Name, recipe.StageType, recipe.Version, string(definition), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create recipe: %w", err)
	}
	return nil
}

func (a *Adapter) GetRecipe(id string) (*models.Recipe, error) {
	var definition string
	err := a.db.QueryRow(`SELECT definition FROM recipes WHERE id = ?`, id).Scan(&definition)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("recipe not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	var recipe models.Recipe
	if err := json.Unmarshal([]byte(definition), &recipe); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe: %w", err)
	}
	return &recipe, nil
}

func (a *Adapter) ListRecipesPaginated(filters models.RecipeFilters, limit, offset int) ([]*models.Recipe, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}

	if filters.StageType != "" {
		where += " AND stage_type = ?"
		args = append(args, filters.StageType)
	}
	if filters.Name != "" {
		where += " AND name LIKE ?"
		args = append(args, "%"+filters.Name+"%")
	}

	var total int
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM recipes `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count recipes: %w", err)
	}

	query := `SELECT definition FROM recipes ` + where + ` ORDER BY updated_at DESC`
	if limit >= 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	var recipes []*models.Recipe
	for rows.Next() {
		var definition string
		if err := rows.Scan(&definition); err != nil {
			return nil, 0, err
		}
		var recipe models.Recipe
		if err := json.Unmarshal([]byte(definition), &recipe); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal recipe: %w", err)
		}
		recipes = append(recipes, &recipe)
	}

	return recipes, total, rows.Err()
}

func (a *Adapter) UpdateRecipe(recipe *models.Recipe) error {
	recipe.UpdatedAt = time.Now().UTC()

	definition, err := json.Marshal(recipe)
	if err != nil {
		return fmt.Errorf("failed to marshal recipe: %w", err)
	}

	result, err := a.db.Exec(
		`UPDATE recipes SET name = ?, stage_type = ?, version = ?, definition = ?, updated_at = ? WHERE id = ?`,
		recipe.Name, recipe.StageType, recipe.Version, string(definition), recipe.UpdatedAt, recipe.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update recipe: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("recipe not found: %s", recipe.ID)
	}
	return nil
}

func (a *Adapter) DeleteRecipe(id string) error {
	result, err := a.db.Exec(`DELETE FROM recipes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("recipe not found: %s", id)
	}
	return nil
}

// Executions

func (a *Adapter) CreateExecution(execution *models.Execution) error {
	now := time.Now().UTC()
	execution.CreatedAt = now
	execution.UpdatedAt = now

	document, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	_, err = a.db.Exec(
		`INSERT INTO executions (id, recipe_id, project_id, status, document, started_at, completed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		execution.ID, execution.RecipeID, execution.ProjectID, string(execution.Status),
		string(document), execution.StartedAt, execution.CompletedAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

func (a *Adapter) GetExecution(id string) (*models.Execution, error) {
	var document string
	err := a.db.QueryRow(`SELECT document FROM executions WHERE id = ?`, id).Scan(&document)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("execution not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}

	var execution models.Execution
	if err := json.Unmarshal([]byte(document), &execution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
	}
	return &execution, nil
}

func (a *Adapter) UpdateExecution(execution *models.Execution) error {
	execution.UpdatedAt = time.Now().UTC()

	document, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	result, err := a.db.Exec(
		`UPDATE executions SET status = ?, document = ?, started_at = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		string(execution.Status), string(document), execution.StartedAt, execution.CompletedAt,
		execution.UpdatedAt, execution.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("execution not found: %s", execution.ID)
	}
	return nil
}

func (a *Adapter) ListExecutions(filters models.ExecutionFilters, limit, offset int) ([]*models.Execution, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}

	if filters.RecipeID != "" {
		where += " AND recipe_id = ?"
		args = append(args, filters.RecipeID)
	}
	if filters.ProjectID != "" {
		where += " AND project_id = ?"
		args = append(args, filters.ProjectID)
	}
	if filters.Status != "" {
		where += " AND status = ?"
		args = append(args, string(filters.Status))
	}

	var total int
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM executions `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count executions: %w", err)
	}

	query := `SELECT document FROM executions ` + where + ` ORDER BY created_at DESC`
	if limit >= 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var executions []*models.Execution
	for rows.Next() {
		var document string
		if err := rows.Scan(&document); err != nil {
			return nil, 0, err
		}
		var execution models.Execution
		if err := json.Unmarshal([]byte(document), &execution); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal execution: %w", err)
		}
		executions = append(executions, &execution)
	}

	return executions, total, rows.Err()
}

func (a *Adapter) DeleteExecutionsBefore(cutoff time.Time) (int, error) {
	result, err := a.db.Exec(
		`DELETE FROM executions WHERE completed_at IS NOT NULL AND completed_at < ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old executions: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

func (a *Adapter) GetRecipeStats(recipeID string) (*models.RecipeStats, error) {
	stats := &models.RecipeStats{RecipeID: recipeID}

	err := a.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
		        COALESCE(AVG(CASE WHEN completed_at IS NOT NULL AND started_at IS NOT NULL
		            THEN (julianday(completed_at) - julianday(started_at)) * 86400000.0 END), 0)
		 FROM executions WHERE recipe_id = ?`, recipeID,
	).Scan(&stats.TotalRuns, &stats.CompletedRuns, &stats.FailedRuns, &stats.AvgDurationMs)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe stats: %w", err)
	}

	return stats, nil
}
