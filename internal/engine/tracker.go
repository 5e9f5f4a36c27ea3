package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"storylab-engine/internal/common/errors"
	"storylab-engine/internal/common/logging"
	"storylab-engine/internal/common/utils"
	"storylab-engine/internal/models"
	"storylab-engine/internal/storage"
)

const statusCacheTTL = 24 * time.Hour

// Tracker owns the execution lifecycle: it creates execution records, appends
// node results, and drives the run-level status transitions. Node results are
// append-only; a terminal result is never overwritten, so re-recording after
// a crash or a duplicate callback is harmless.
//
// When a Redis client is configured, the latest execution document is
// mirrored there and status reads prefer the mirror.
type Tracker struct {
	storage storage.Storage
	redis   *redis.Client
	logger  logging.Logger

	// Per-execution locks serialize concurrent node recordings from
	// parallel batch workers.
	locks sync.Map
}

// NewTracker creates an execution tracker. redisClient may be nil.
func NewTracker(store storage.Storage, redisClient *redis.Client, logger logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Tracker{
		storage: store,
		redis:   redisClient,
		logger:  logger,
	}
}

// PingCache checks the Redis mirror. It returns nil when no client is
// configured.
func (t *Tracker) PingCache(ctx context.Context) error {
	if t.redis == nil {
		return nil
	}
	return t.redis.Ping(ctx).Err()
}

func (t *Tracker) lockFor(executionID string) *sync.Mutex {
	mu, _ := t.locks.LoadOrStore(executionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Create persists a new pending execution for the recipe and returns it.
func (t *Tracker) Create(recipe *models.Recipe, input map[string]interface{}, execCtx models.ExecutionContext) (*models.Execution, error) {
	execution := &models.Execution{
		ID:            utils.NewExecutionID(),
		RecipeID:      recipe.ID,
		RecipeVersion: recipe.Version,
		ProjectID:     execCtx.ProjectID,
		StageID:       execCtx.StageID,
		UserID:        execCtx.UserID,
		Status:        models.ExecutionStatusPending,
		Input:         input,
		NodeResults:   make(map[string]*models.NodeResult, len(recipe.Nodes)),
	}

	for i := range recipe.Nodes {
		execution.NodeResults[recipe.Nodes[i].ID] = &models.NodeResult{
			NodeID: recipe.Nodes[i].ID,
			Status: models.NodeStatusPending,
		}
	}

	if err := t.storage.CreateExecution(execution); err != nil {
		return nil, errors.InternalError("failed to create execution record", err)
	}

	t.mirror(execution)
	return execution, nil
}

// Start transitions the execution to running and stamps the start time.
func (t *Tracker) Start(executionID string) error {
	return t.update(executionID, func(execution *models.Execution) error {
		if execution.Status.Terminal() {
			return errors.ExecutionError(fmt.Sprintf("execution '%s' already %s", executionID, execution.Status), nil)
		}
		now := time.Now().UTC()
		execution.Status = models.ExecutionStatusRunning
		execution.StartedAt = &now
		return nil
	})
}

// RecordNodeStart marks a node running if it has no terminal result yet.
func (t *Tracker) RecordNodeStart(executionID, nodeID string) error {
	return t.update(executionID, func(execution *models.Execution) error {
		result := execution.NodeResults[nodeID]
		if result == nil {
			result = &models.NodeResult{NodeID: nodeID}
			execution.NodeResults[nodeID] = result
		}
		if result.Status.Terminal() {
			return nil
		}
		now := time.Now().UTC()
		result.Status = models.NodeStatusRunning
		result.StartedAt = &now
		return nil
	})
}

// RecordNodeResult appends a terminal node result. If a terminal result is
// already present the call is a no-op, keeping recording idempotent.
func (t *Tracker) RecordNodeResult(executionID string, result *models.NodeResult) error {
	if !result.Status.Terminal() {
		return errors.InternalError(fmt.Sprintf("node result for '%s' must be terminal", result.NodeID), nil)
	}

	return t.update(executionID, func(execution *models.Execution) error {
		existing := execution.NodeResults[result.NodeID]
		if existing != nil && existing.Status.Terminal() {
			t.logger.Debug("Ignoring duplicate terminal node result",
				logging.Field{Key: "execution_id", Value: executionID},
				logging.Field{Key: "node_id", Value: result.NodeID},
			)
			return nil
		}
		if existing != nil && result.StartedAt == nil {
			result.StartedAt = existing.StartedAt
		}
		if result.CompletedAt == nil {
			now := time.Now().UTC()
			result.CompletedAt = &now
		}
		execution.NodeResults[result.NodeID] = result
		return nil
	})
}

// Complete marks the execution completed and attaches the final output.
func (t *Tracker) Complete(executionID string, finalOutput map[string]interface{}) error {
	return t.finish(executionID, models.ExecutionStatusCompleted, finalOutput, "")
}

// Fail marks the execution failed with the given reason.
func (t *Tracker) Fail(executionID string, reason string) error {
	return t.finish(executionID, models.ExecutionStatusFailed, nil, reason)
}

func (t *Tracker) finish(executionID string, status models.ExecutionStatus, finalOutput map[string]interface{}, reason string) error {
	err := t.update(executionID, func(execution *models.Execution) error {
		if execution.Status.Terminal() {
			return nil
		}
		now := time.Now().UTC()
		execution.Status = status
		execution.CompletedAt = &now
		execution.FinalOutput = finalOutput
		execution.Error = reason
		return nil
	})
	if err == nil {
		t.locks.Delete(executionID)
	}
	return err
}

// update applies fn to the stored execution under the per-execution lock and
// persists the result.
func (t *Tracker) update(executionID string, fn func(*models.Execution) error) error {
	mu := t.lockFor(executionID)
	mu.Lock()
	defer mu.Unlock()

	execution, err := t.storage.GetExecution(executionID)
	if err != nil {
		return errors.NotFoundError(fmt.Sprintf("execution '%s'", executionID))
	}

	if err := fn(execution); err != nil {
		return err
	}

	if err := t.storage.UpdateExecution(execution); err != nil {
		return errors.InternalError("failed to persist execution update", err)
	}

	t.mirror(execution)
	return nil
}

// Get returns the full execution document, preferring the Redis mirror.
func (t *Tracker) Get(ctx context.Context, executionID string) (*models.Execution, error) {
	if t.redis != nil {
		data, err := t.redis.Get(ctx, statusKey(executionID)).Bytes()
		if err == nil {
			var execution models.Execution
			if err := json.Unmarshal(data, &execution); err == nil {
				return &execution, nil
			}
		} else if err != redis.Nil {
			t.logger.Warn("Redis status read failed, falling back to storage",
				logging.Field{Key: "execution_id", Value: executionID},
				logging.Err(err),
			)
		}
	}

	execution, err := t.storage.GetExecution(executionID)
	if err != nil {
		return nil, errors.NotFoundError(fmt.Sprintf("execution '%s'", executionID))
	}
	return execution, nil
}

// GetSummary returns the flattened status view of an execution.
func (t *Tracker) GetSummary(ctx context.Context, executionID string) (*models.ExecutionSummary, error) {
	execution, err := t.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}
	return execution.Summary(), nil
}

// List returns execution summaries matching the filters.
func (t *Tracker) List(filters models.ExecutionFilters, limit, offset int) ([]*models.ExecutionSummary, int, error) {
	executions, total, err := t.storage.ListExecutions(filters, limit, offset)
	if err != nil {
		return nil, 0, errors.InternalError("failed to list executions", err)
	}
	summaries := make([]*models.ExecutionSummary, 0, len(executions))
	for _, execution := range executions {
		summaries = append(summaries, execution.Summary())
	}
	return summaries, total, nil
}

// mirror best-effort publishes the execution document to Redis.
func (t *Tracker) mirror(execution *models.Execution) {
	if t.redis == nil {
		return
	}
	data, err := json.Marshal(execution)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := t.redis.Set(ctx, statusKey(execution.ID), data, statusCacheTTL).Err(); err != nil {
		t.logger.Warn("Redis status mirror failed",
			logging.Field{Key: "execution_id", Value: execution.ID},
			logging.Err(err),
		)
	}
}

func statusKey(executionID string) string {
	return "storylab:execution:" + executionID
}
