package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"

	"storylab-engine/internal/common/errors"
	"storylab-engine/internal/models"
)

// executeTransform runs a data_processing node. The operation comes from the
// node's parameters; default is merge. No external AI call is made, though
// upload writes to the object store.
func (e *Executor) executeTransform(ctx context.Context, node *models.Node, inputs ResolvedInputs) (*ActionResult, error) {
	operation := "merge"
	if op, ok := node.Parameters["operation"].(string); ok && op != "" {
		operation = op
	}

	var (
		output interface{}
		err    error
	)

	switch operation {
	case "merge":
		output = e.transformMerge(inputs)
	case "template":
		output, err = e.transformTemplate(node, inputs)
	case "script":
		output, err = e.transformScript(ctx, node, inputs)
	case "upload":
		output, err = e.transformUpload(ctx, node, inputs)
	default:
		err = errors.ExecutionError(fmt.Sprintf("node '%s' has unknown operation '%s'", node.ID, operation), nil)
	}

	if err != nil {
		return nil, err
	}
	return &ActionResult{Output: output}, nil
}

// transformMerge combines all resolved inputs into one object.
func (e *Executor) transformMerge(inputs ResolvedInputs) map[string]interface{} {
	merged := make(map[string]interface{}, len(inputs))
	for k, v := range inputs {
		merged[k] = v
	}
	return merged
}

// transformTemplate renders the node's "template" parameter as a Go text
// template over the resolved inputs.
func (e *Executor) transformTemplate(node *models.Node, inputs ResolvedInputs) (interface{}, error) {
	raw, ok := node.Parameters["template"].(string)
	if !ok || raw == "" {
		return nil, errors.ExecutionError(fmt.Sprintf("node '%s' template operation requires a 'template' parameter", node.ID), nil)
	}

	funcs := template.FuncMap{
		"uuid": uuid.NewString,
		"now":  func() string { return time.Now().UTC().Format(time.RFC3339) },
		"json": func(v interface{}) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
	}

	tmpl, err := template.New(node.ID).Funcs(funcs).Parse(raw)
	if err != nil {
		return nil, errors.ExecutionError(fmt.Sprintf("node '%s' template parse failed", node.ID), err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, map[string]interface{}(inputs)); err != nil {
		return nil, errors.ExecutionError(fmt.Sprintf("node '%s' template execution failed", node.ID), err)
	}

	return sb.String(), nil
}

// transformScript evaluates the node's "script" parameter as JavaScript with
// the resolved inputs bound to a global `inputs` object. The script's final
// expression value becomes the node output. An interrupt tied to the context
// bounds runaway scripts.
func (e *Executor) transformScript(ctx context.Context, node *models.Node, inputs ResolvedInputs) (interface{}, error) {
	script, ok := node.Parameters["script"].(string)
	if !ok || script == "" {
		return nil, errors.ExecutionError(fmt.Sprintf("node '%s' script operation requires a 'script' parameter", node.ID), nil)
	}

	vm := goja.New()
	if err := vm.Set("inputs", map[string]interface{}(inputs)); err != nil {
		return nil, errors.ExecutionError(fmt.Sprintf("node '%s' script setup failed", node.ID), err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	value, err := vm.RunString(script)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.TimeoutError(fmt.Sprintf("node '%s' script", node.ID))
		}
		return nil, errors.ExecutionError(fmt.Sprintf("node '%s' script failed", node.ID), err)
	}

	return value.Export(), nil
}

// transformUpload writes the "data" input to the object store and returns
// the resulting URL. Content type and key come from node parameters with
// sensible defaults.
func (e *Executor) transformUpload(ctx context.Context, node *models.Node, inputs ResolvedInputs) (interface{}, error) {
	if e.objects == nil {
		return nil, errors.ExecutionError(fmt.Sprintf("node '%s' upload operation requires an object store", node.ID), nil)
	}

	raw, ok := inputs["data"]
	if !ok {
		return nil, errors.ExecutionError(fmt.Sprintf("node '%s' upload operation requires a 'data' input", node.ID), nil)
	}

	var data []byte
	switch v := raw.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, errors.ExecutionError(fmt.Sprintf("node '%s' upload data is not serializable", node.ID), err)
		}
		data = encoded
	}

	contentType := "application/octet-stream"
	if ct, ok := node.Parameters["contentType"].(string); ok && ct != "" {
		contentType = ct
	}

	key := fmt.Sprintf("%s/%s", node.OutputKey, uuid.NewString())
	if k, ok := node.Parameters["key"].(string); ok && k != "" {
		key = k
	}

	url, err := e.objects.Upload(ctx, key, data, contentType)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.TimeoutError(fmt.Sprintf("node '%s' upload", node.ID))
		}
		return nil, errors.ExecutionError(fmt.Sprintf("node '%s' upload failed", node.ID), err)
	}

	return url, nil
}
