// Package engine contains the recipe execution machinery: input resolution,
// action execution, run tracking, and the orchestrator control loop.
package engine

import (
	"strconv"
	"strings"

	"storylab-engine/internal/common/errors"
)

const (
	externalPrefix = "external_input."
	literalPrefix  = "value:"
)

// ResolvedInputs maps parameter names to concrete values.
type ResolvedInputs map[string]interface{}

// ResolveInputs computes concrete input values for a node from its input
// mapping. Resolution is pure: identical arguments always produce identical
// results, which keeps replay and debugging deterministic.
//
// Source reference forms:
//   - "external_input.<field>" reads the caller-supplied input
//   - "value:<literal>" is a constant (bool, number, or string by lexical form)
//   - anything else names a prior node's outputKey in nodeOutputs
//
// A missing external field or output key yields an unresolved reference
// error; the node cannot run.
func ResolveInputs(inputMapping map[string]string, nodeOutputs map[string]interface{}, externalInput map[string]interface{}) (ResolvedInputs, error) {
	resolved := make(ResolvedInputs, len(inputMapping))

	for param, ref := range inputMapping {
		switch {
		case strings.HasPrefix(ref, externalPrefix):
			field := strings.TrimPrefix(ref, externalPrefix)
			value, ok := externalInput[field]
			if !ok {
				return nil, errors.UnresolvedError(param, ref)
			}
			resolved[param] = value

		case strings.HasPrefix(ref, literalPrefix):
			resolved[param] = parseLiteral(strings.TrimPrefix(ref, literalPrefix))

		default:
			value, ok := nodeOutputs[ref]
			if !ok {
				// Dependencies completed before this node ran, so a missing
				// key is an upstream logic defect, not a recoverable state.
				return nil, errors.UnresolvedError(param, ref)
			}
			resolved[param] = value
		}
	}

	return resolved, nil
}

// parseLiteral interprets a literal by lexical form: true/false as booleans,
// pure numerals as numbers, anything else as the string itself.
func parseLiteral(raw string) interface{} {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}

	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}

	return raw
}
