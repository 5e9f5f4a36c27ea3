// Package postgres implements the storage interface on PostgreSQL via the
// pgx stdlib driver. Layout mirrors the sqlite adapter: JSON documents plus
// indexed filter columns.
package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"storylab-engine/internal/models"
	"storylab-engine/internal/storage"
)

type Adapter struct {
	db     *sql.DB
	config *storage.PostgresConfig
}

func NewAdapter(config *storage.PostgresConfig) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL config: %w", err)
	}

	db, err := sql.Open("pgx", config.GetConnectionString())
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
	pgConfig, ok := config.(*storage.PostgresConfig)
	if !ok {
		return fmt.Errorf("invalid config type for PostgreSQL storage")
	}

	newAdapter, err := NewAdapter(pgConfig)
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
			definition JSONB NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			recipe_id TEXT NOT NULL,
			project_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			document JSONB NOT NULL,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		recipe.ID, recipe.Name, recipe.StageType, recipe.Version, string(definition), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create recipe: %w", err)
	}
	return nil
}

func (a *Adapter) GetRecipe(id string) (*models.Recipe, error) {
	var definition string
	err := a.db.QueryRow(`SELECT definition FROM recipes WHERE id = $1`, id).Scan(&definition)
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
	argn := 0

	next := func() string {
		argn++
		return fmt.Sprintf("$%d", argn)
	}

	if filters.StageType != "" {
		where += " AND stage_type = " + next()
		args = append(args, filters.StageType)
	}
	if filters.Name != "" {
		where += " AND name ILIKE " + next()
		args = append(args, "%"+filters.Name+"%")
	}

	var total int
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM recipes `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count recipes: %w", err)
	}

	query := `SELECT definition FROM recipes ` + where + ` ORDER BY updated_at DESC`
	if limit >= 0 {
		query += " LIMIT " + next()
		args = append(args, limit)
		query += " OFFSET " + next()
		args = append(args, offset)
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
		`UPDATE recipes SET name = $1, stage_type = $2, version = $3, definition = $4, updated_at = $5 WHERE id = $6`,
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
	result, err := a.db.Exec(`DELETE FROM recipes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("recipe not found: %s", id)
	}
	return nil
}

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
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
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
	err := a.db.QueryRow(`SELECT document FROM executions WHERE id = $1`, id).Scan(&document)
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
		`UPDATE executions SET status = $1, document = $2, started_at = $3, completed_at = $4, updated_at = $5 WHERE id = $6`,
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
	argn := 0

	next := func() string {
		argn++
		return fmt.Sprintf("$%d", argn)
	}

	if filters.RecipeID != "" {
		where += " AND recipe_id = " + next()
		args = append(args, filters.RecipeID)
	}
	if filters.ProjectID != "" {
		where += " AND project_id = " + next()
		args = append(args, filters.ProjectID)
	}
	if filters.Status != "" {
		where += " AND status = " + next()
		args = append(args, string(filters.Status))
	}

	var total int
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM executions `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count executions: %w", err)
	}

	query := `SELECT document FROM executions ` + where + ` ORDER BY created_at DESC`
	if limit >= 0 {
		query += " LIMIT " + next()
		args = append(args, limit)
		query += " OFFSET " + next()
		args = append(args, offset)
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
		`DELETE FROM executions WHERE completed_at IS NOT NULL AND completed_at < $1`, cutoff,
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
		            THEN EXTRACT(EPOCH FROM (completed_at - started_at)) * 1000.0 END), 0)
		 FROM executions WHERE recipe_id = $1`, recipeID,
	).Scan(&stats.TotalRuns, &stats.CompletedRuns, &stats.FailedRuns, &stats.AvgDurationMs)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe stats: %w", err)
	}

	return stats, nil
}
