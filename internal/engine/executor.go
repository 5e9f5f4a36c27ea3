package engine

import (
	"context"
	"fmt"
	"regexp"

	"storylab-engine/internal/circuitbreaker"
	"storylab-engine/internal/common/errors"
	"storylab-engine/internal/common/logging"
	"storylab-engine/internal/models"
	"storylab-engine/internal/objectstore"
	"storylab-engine/internal/providers"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// ActionResult is the outcome of executing one node.
type ActionResult struct {
	Output     interface{}
	Raw        interface{}
	TokensUsed int
}

// Executor runs a single node against its resolved inputs: generation nodes
// dispatch to a capability provider through the circuit breaker, data
// processing nodes run a local transform.
type Executor struct {
	providers *providers.Registry
	breakers  *circuitbreaker.Manager
	objects   objectstore.Store
	logger    logging.Logger
}

// NewExecutor creates an action executor.
func NewExecutor(registry *providers.Registry, breakers *circuitbreaker.Manager, objects objectstore.Store, logger logging.Logger) *Executor {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Executor{
		providers: registry,
		breakers:  breakers,
		objects:   objects,
		logger:    logger,
	}
}

// Execute runs one node. The context carries the per-attempt timeout; the
// provider call is the only suspension point.
func (e *Executor) Execute(ctx context.Context, node *models.Node, inputs ResolvedInputs) (*ActionResult, error) {
	if node.Type == models.NodeTypeDataProcessing {
		return e.executeTransform(ctx, node, inputs)
	}

	kind, ok := providers.KindForNodeType(node.Type)
	if !ok {
		return nil, errors.ExecutionError(fmt.Sprintf("node '%s' has unsupported type '%s'", node.ID, node.Type), nil)
	}

	if node.AIModel == nil {
		return nil, errors.ExecutionError(fmt.Sprintf("node '%s' has no aiModel", node.ID), nil)
	}

	prompt := e.buildPrompt(node, inputs)

	provider, err := e.providers.Get(node.AIModel.Provider)
	if err != nil {
		return nil, errors.ExecutionError(fmt.Sprintf("node '%s': %v", node.ID, err), nil)
	}

	req := &providers.Request{
		Kind:        kind,
		Model:       node.AIModel.ModelName,
		Prompt:      prompt,
		Temperature: node.AIModel.Temperature,
		MaxTokens:   node.AIModel.MaxTokens,
		Parameters:  node.Parameters,
	}

	raw, err := e.breakers.Execute(provider.Name(), func() (interface{}, error) {
		return provider.Generate(ctx, req)
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.TimeoutError(fmt.Sprintf("node '%s'", node.ID))
		}
		if errors.IsType(err, errors.ErrTypeTimeout) || errors.IsType(err, errors.ErrTypeExecution) {
			return nil, err
		}
		return nil, errors.ExecutionError(fmt.Sprintf("node '%s' provider call failed", node.ID), err)
	}

	result := raw.(*providers.Result)
	return &ActionResult{
		Output:     result.Output,
		Raw:        result.Raw,
		TokensUsed: result.TokensUsed,
	}, nil
}

// buildPrompt substitutes each {paramName} placeholder with the resolved
// input's string form. Substitution is textual and case-sensitive. Node
// parameter defaults fill holes the mapping left open; an unmatched
// placeholder stays verbatim and is logged.
func (e *Executor) buildPrompt(node *models.Node, inputs ResolvedInputs) string {
	template := node.PromptText()

	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]

		if value, ok := inputs[name]; ok {
			return fmt.Sprint(value)
		}
		if value, ok := node.Parameters[name]; ok {
			return fmt.Sprint(value)
		}

		e.logger.Warn("Unmatched prompt placeholder left verbatim",
			logging.Field{Key: "node_id", Value: node.ID},
			logging.Field{Key: "placeholder", Value: name},
		)
		return match
	})
}
