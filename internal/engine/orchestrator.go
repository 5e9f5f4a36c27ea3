package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"storylab-engine/internal/common/errors"
	"storylab-engine/internal/common/logging"
	"storylab-engine/internal/common/utils"
	"storylab-engine/internal/models"
	"storylab-engine/internal/recipe"
)

// Options tunes orchestrator behavior.
type Options struct {
	// DefaultNodeTimeout bounds a single node attempt when the node does not
	// declare its own timeout.
	DefaultNodeTimeout time.Duration

	// MaxConcurrentNodes caps how many nodes of one batch run in parallel.
	MaxConcurrentNodes int
}

// Orchestrator drives recipe executions: it validates the recipe, derives
// the topological execution plan, runs batches of independent nodes
// concurrently, and applies per-node failure policies.
//
// Execute returns as soon as the execution record exists; the run itself
// proceeds on a background goroutine and is observed through the Tracker.
type Orchestrator struct {
	recipes  *recipe.Store
	tracker  *Tracker
	executor *Executor
	logger   logging.Logger
	opts     Options

	cancels sync.Map // execution ID -> context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(recipes *recipe.Store, tracker *Tracker, executor *Executor, opts Options, logger logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if opts.DefaultNodeTimeout <= 0 {
		opts.DefaultNodeTimeout = 60 * time.Second
	}
	if opts.MaxConcurrentNodes <= 0 {
		opts.MaxConcurrentNodes = 4
	}
	return &Orchestrator{
		recipes:  recipes,
		tracker:  tracker,
		executor: executor,
		logger:   logger,
		opts:     opts,
	}
}

// Execute starts a run of the given recipe. The recipe is re-validated
// before any execution record is created; an invalid recipe is rejected
// outright. On success the returned execution is pending and the run
// continues asynchronously.
func (o *Orchestrator) Execute(ctx context.Context, recipeID string, input map[string]interface{}, execCtx models.ExecutionContext) (*models.Execution, error) {
	rec, err := o.recipes.Get(recipeID)
	if err != nil {
		return nil, err
	}

	if result := o.recipes.Validator().Validate(rec); !result.Valid {
		return nil, errors.ValidationError(fmt.Sprintf("recipe '%s' failed validation: %s", recipeID, strings.Join(result.Errors, "; ")))
	}

	d, err := recipe.NewDAG(rec)
	if err != nil {
		return nil, errors.InternalError("failed to build execution graph", err)
	}
	plan, err := d.ExecutionPlan()
	if err != nil {
		return nil, errors.InternalError("failed to derive execution plan", err)
	}

	execution, err := o.tracker.Create(rec, input, execCtx)
	if err != nil {
		return nil, err
	}

	base := context.WithValue(context.Background(), logging.ExecutionIDKey, execution.ID)
	base = context.WithValue(base, logging.RecipeIDKey, rec.ID)
	runCtx, cancel := context.WithCancel(base)
	o.cancels.Store(execution.ID, cancel)

	o.logger.Info("Execution started",
		logging.Field{Key: "execution_id", Value: execution.ID},
		logging.Field{Key: "recipe_id", Value: rec.ID},
		logging.Field{Key: "recipe_version", Value: rec.Version},
		logging.Field{Key: "batches", Value: len(plan)},
	)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		defer o.cancels.Delete(execution.ID)
		o.run(runCtx, execution.ID, d, plan, input)
	}()

	return execution, nil
}

// Cancel requests best-effort cancellation of a running execution. Nodes
// already in flight finish their current attempt; nothing new is scheduled.
func (o *Orchestrator) Cancel(executionID string) error {
	value, ok := o.cancels.Load(executionID)
	if !ok {
		return errors.NotFoundError(fmt.Sprintf("running execution '%s'", executionID))
	}
	value.(context.CancelFunc)()
	return nil
}

// Wait blocks until all in-flight runs have finished. Used during shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// runState is the shared mutable state of one run, guarded by mu during
// concurrent batch execution.
type runState struct {
	mu      sync.Mutex
	outputs map[string]interface{} // outputKey -> output
	failed  map[string]string      // node ID -> root failure description
	fatal   string                 // non-empty once a fail-policy node has failed
}

func (o *Orchestrator) run(ctx context.Context, executionID string, d *recipe.DAG, plan [][]string, input map[string]interface{}) {
	if err := o.tracker.Start(executionID); err != nil {
		o.logger.Error("Failed to mark execution running", err,
			logging.Field{Key: "execution_id", Value: executionID},
		)
		return
	}

	state := &runState{
		outputs: make(map[string]interface{}),
		failed:  make(map[string]string),
	}

	for _, batch := range plan {
		if state.fatal != "" || ctx.Err() != nil {
			break
		}

		o.runBatch(ctx, executionID, d, batch, input, state)
	}

	o.finish(ctx, executionID, d, plan, state)
}

func (o *Orchestrator) runBatch(ctx context.Context, executionID string, d *recipe.DAG, batch []string, input map[string]interface{}, state *runState) {
	// Dependencies live in earlier batches, so the snapshot taken here is
	// complete for every node scheduled below.
	outputs := make(map[string]interface{}, len(state.outputs))
	for k, v := range state.outputs {
		outputs[k] = v
	}

	g := &errgroup.Group{}
	g.SetLimit(o.opts.MaxConcurrentNodes)

	for _, nodeID := range batch {
		node, ok := d.Node(nodeID)
		if !ok {
			continue
		}

		// Cascade check happens before scheduling: a node whose dependency
		// failed is recorded failed without ever executing.
		if failedDep := o.failedDependency(node, state); failedDep != "" {
			o.recordCascade(executionID, node, failedDep, state)
			continue
		}

		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			o.runNode(ctx, executionID, node, outputs, input, state)
			return nil
		})
	}

	_ = g.Wait()
}

// failedDependency returns the description of the first failed direct
// dependency, or empty when all dependencies completed.
func (o *Orchestrator) failedDependency(node *models.Node, state *runState) string {
	state.mu.Lock()
	defer state.mu.Unlock()
	for _, dep := range node.Dependencies {
		if _, failed := state.failed[dep]; failed {
			return dep
		}
	}
	return ""
}

func (o *Orchestrator) recordCascade(executionID string, node *models.Node, failedDep string, state *runState) {
	cascadeErr := errors.CascadeError(node.ID, failedDep)

	if err := o.tracker.RecordNodeResult(executionID, &models.NodeResult{
		NodeID:   node.ID,
		Status:   models.NodeStatusFailed,
		Error:    cascadeErr.Error(),
		Cascaded: true,
	}); err != nil {
		o.logger.Error("Failed to record cascade result", err,
			logging.Field{Key: "execution_id", Value: executionID},
			logging.Field{Key: "node_id", Value: node.ID},
		)
	}

	state.mu.Lock()
	state.failed[node.ID] = cascadeErr.Error()
	state.mu.Unlock()
}

// runNode resolves inputs, executes the node with its failure policy, and
// records the terminal result.
func (o *Orchestrator) runNode(ctx context.Context, executionID string, node *models.Node, outputs map[string]interface{}, input map[string]interface{}, state *runState) {
	if err := o.tracker.RecordNodeStart(executionID, node.ID); err != nil {
		o.logger.Error("Failed to mark node running", err,
			logging.Field{Key: "execution_id", Value: executionID},
			logging.Field{Key: "node_id", Value: node.ID},
		)
	}

	started := time.Now().UTC()

	result, retriesUsed, err := o.attempt(ctx, node, outputs, input)

	completed := time.Now().UTC()
	nodeResult := &models.NodeResult{
		NodeID:      node.ID,
		StartedAt:   &started,
		CompletedAt: &completed,
		RetriesUsed: retriesUsed,
	}

	if err != nil {
		nodeResult.Status = models.NodeStatusFailed
		nodeResult.Error = err.Error()

		o.logger.Warn("Node failed",
			logging.Field{Key: "execution_id", Value: executionID},
			logging.Field{Key: "node_id", Value: node.ID},
			logging.Field{Key: "policy", Value: string(node.ErrorHandling.Policy())},
			logging.Field{Key: "retries_used", Value: retriesUsed},
			logging.Err(err),
		)

		state.mu.Lock()
		state.failed[node.ID] = err.Error()
		// A retry policy that exhausts its attempts falls back to fail.
		if node.ErrorHandling.Policy() != models.ErrorPolicySkip {
			if state.fatal == "" {
				state.fatal = fmt.Sprintf("node '%s' failed: %s", node.ID, err.Error())
			}
		}
		state.mu.Unlock()
	} else {
		nodeResult.Status = models.NodeStatusCompleted
		nodeResult.Output = result.Output
		nodeResult.TokensUsed = result.TokensUsed

		state.mu.Lock()
		state.outputs[node.OutputKey] = result.Output
		state.mu.Unlock()
	}

	if err := o.tracker.RecordNodeResult(executionID, nodeResult); err != nil {
		o.logger.Error("Failed to record node result", err,
			logging.Field{Key: "execution_id", Value: executionID},
			logging.Field{Key: "node_id", Value: node.ID},
		)
	}
}

// attempt executes one node, applying the retry policy. It returns the
// action result, the number of retries consumed, and the terminal error.
func (o *Orchestrator) attempt(ctx context.Context, node *models.Node, outputs map[string]interface{}, input map[string]interface{}) (*ActionResult, int, error) {
	inputs, err := ResolveInputs(node.InputMapping, outputs, input)
	if err != nil {
		// Resolution is deterministic; retrying cannot help.
		return nil, 0, err
	}

	timeout := node.ErrorHandling.GetTimeout(o.opts.DefaultNodeTimeout)

	var resultHolder *ActionResult
	runOnce := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		res, execErr := o.executor.Execute(attemptCtx, node, inputs)
		if execErr != nil {
			return execErr
		}
		resultHolder = res
		return nil
	}

	if node.ErrorHandling.Policy() != models.ErrorPolicyRetry || node.ErrorHandling.RetryCount <= 0 {
		if err := runOnce(); err != nil {
			return nil, 0, err
		}
		return resultHolder, 0, nil
	}

	retryCfg := utils.DefaultRetryConfig()
	retryCfg.MaxAttempts = node.ErrorHandling.RetryCount + 1
	retryCfg.RetryableErrors = func(err error) bool {
		return !errors.IsType(err, errors.ErrTypeCancelled) && ctx.Err() == nil
	}

	attempts, err := utils.RetryWithBackoffCount(ctx, retryCfg, runOnce)
	retriesUsed := attempts - 1
	if retriesUsed < 0 {
		retriesUsed = 0
	}
	if err != nil {
		return nil, retriesUsed, err
	}
	return resultHolder, retriesUsed, nil
}

// finish computes the terminal run status. A fail-policy failure or
// cancellation fails the run after recording a terminal result for every
// node that never executed; skip-policy failures alone still complete the
// run.
func (o *Orchestrator) finish(ctx context.Context, executionID string, d *recipe.DAG, plan [][]string, state *runState) {
	cancelled := ctx.Err() != nil

	if state.fatal != "" || cancelled {
		reason := state.fatal
		if cancelled && reason == "" {
			reason = errors.CancelledError("execution").Error()
		}

		// Nodes downstream of a failure are cascade failures; nodes the
		// abort merely kept from running carry the run's reason without the
		// cascade flag. Either way every node ends with a terminal result.
		state.mu.Lock()
		failedIDs := make([]string, 0, len(state.failed))
		for id := range state.failed {
			failedIDs = append(failedIDs, id)
		}
		state.mu.Unlock()

		doomed := make(map[string]bool)
		for _, id := range failedIDs {
			for _, dependent := range d.Dependents(id) {
				doomed[dependent] = true
			}
		}

		for _, batch := range plan {
			for _, nodeID := range batch {
				node, ok := d.Node(nodeID)
				if !ok {
					continue
				}
				state.mu.Lock()
				_, alreadyFailed := state.failed[nodeID]
				_, completed := state.outputs[node.OutputKey]
				state.mu.Unlock()
				if alreadyFailed || completed {
					continue
				}
				o.markUnexecuted(executionID, node, reason, doomed[nodeID], state)
			}
		}

		if err := o.tracker.Fail(executionID, reason); err != nil {
			o.logger.Error("Failed to mark execution failed", err,
				logging.Field{Key: "execution_id", Value: executionID},
			)
		}

		o.logger.Info("Execution failed",
			logging.Field{Key: "execution_id", Value: executionID},
			logging.Field{Key: "reason", Value: reason},
		)
		return
	}

	state.mu.Lock()
	finalOutput := make(map[string]interface{}, len(state.outputs))
	for k, v := range state.outputs {
		finalOutput[k] = v
	}
	recovered := len(state.failed)
	state.mu.Unlock()

	if err := o.tracker.Complete(executionID, finalOutput); err != nil {
		o.logger.Error("Failed to mark execution completed", err,
			logging.Field{Key: "execution_id", Value: executionID},
		)
		return
	}

	o.logger.Info("Execution completed",
		logging.Field{Key: "execution_id", Value: executionID},
		logging.Field{Key: "outputs", Value: len(finalOutput)},
		logging.Field{Key: "skipped_failures", Value: recovered},
	)
}

// markUnexecuted records a failure for a node that had no terminal result
// when the run aborted. RecordNodeResult ignores the write when the node
// did finish, so racing with an in-flight completion is safe.
func (o *Orchestrator) markUnexecuted(executionID string, node *models.Node, reason string, cascaded bool, state *runState) {
	if err := o.tracker.RecordNodeResult(executionID, &models.NodeResult{
		NodeID:   node.ID,
		Status:   models.NodeStatusFailed,
		Error:    reason,
		Cascaded: cascaded,
	}); err != nil {
		o.logger.Error("Failed to record aborted node", err,
			logging.Field{Key: "execution_id", Value: executionID},
			logging.Field{Key: "node_id", Value: node.ID},
		)
	}

	state.mu.Lock()
	state.failed[node.ID] = reason
	state.mu.Unlock()
}
