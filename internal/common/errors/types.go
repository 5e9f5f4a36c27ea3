// Package errors defines the structured error taxonomy used across the
// recipe engine: validation, unresolved references, action execution
// failures, and cascade failures, alongside generic infrastructure errors.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeValidation represents recipe or request validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeUnresolved represents an input mapping that cannot be satisfied
	ErrTypeUnresolved ErrorType = "unresolved_reference"
	// ErrTypeExecution represents a failed or timed out action execution
	ErrTypeExecution ErrorType = "action_execution"
	// ErrTypeCascade represents a node failed only because an upstream
	// dependency failed
	ErrTypeCascade ErrorType = "cascade_failure"
	// ErrTypeConnection represents connection-related errors
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeNotFound represents resource not found errors
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
	// ErrTypeCancelled represents a run cancelled by the caller
	ErrTypeCancelled ErrorType = "cancelled"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// UnresolvedError creates an unresolved reference error for a parameter
func UnresolvedError(param, ref string) *AppError {
	return &AppError{
		Type:    ErrTypeUnresolved,
		Message: fmt.Sprintf("cannot resolve %q for parameter %q", ref, param),
		Context: map[string]interface{}{"param": param, "ref": ref},
	}
}

// ExecutionError creates an action execution error
func ExecutionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeExecution,
		Message: msg,
		Cause:   cause,
	}
}

// CascadeError creates a cascade failure error naming the failed dependency
func CascadeError(nodeID, failedDep string) *AppError {
	return &AppError{
		Type:    ErrTypeCascade,
		Message: fmt.Sprintf("node %q not executed: dependency %q failed", nodeID, failedDep),
		Context: map[string]interface{}{"node": nodeID, "failed_dependency": failedDep},
	}
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
	}
}

// CancelledError creates a cancellation error
func CancelledError(operation string) *AppError {
	return &AppError{
		Type:    ErrTypeCancelled,
		Message: fmt.Sprintf("%s cancelled", operation),
	}
}

// IsType checks if an error is of a specific type, unwrapping as needed
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}

	return appErr.Type == errType
}
