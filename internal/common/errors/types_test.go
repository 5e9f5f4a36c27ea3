package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := InternalError("write failed", cause)

	assert.Contains(t, err.Error(), "write failed")
	assert.Contains(t, err.Error(), "disk full")
	assert.ErrorIs(t, err, cause)
}

func TestIsType(t *testing.T) {
	err := ValidationError("bad recipe")

	assert.True(t, IsType(err, ErrTypeValidation))
	assert.False(t, IsType(err, ErrTypeNotFound))
	assert.False(t, IsType(nil, ErrTypeValidation))

	// detection survives wrapping
	wrapped := fmt.Errorf("request failed: %w", err)
	assert.True(t, IsType(wrapped, ErrTypeValidation))
}

func TestUnresolvedError(t *testing.T) {
	err := UnresolvedError("topic", "external_input.topic")

	assert.True(t, IsType(err, ErrTypeUnresolved))
	assert.Contains(t, err.Error(), "topic")
	assert.Equal(t, "topic", err.Context["param"])
}

func TestCascadeError(t *testing.T) {
	err := CascadeError("join", "left")

	assert.True(t, IsType(err, ErrTypeCascade))
	assert.Contains(t, err.Error(), "join")
	assert.Contains(t, err.Error(), "left")
}

func TestWithContext(t *testing.T) {
	err := ExecutionError("provider call failed", nil).
		WithContext("node", "write").
		WithContext("attempt", 2)

	require.NotNil(t, err.Context)
	assert.Equal(t, "write", err.Context["node"])
	assert.Equal(t, 2, err.Context["attempt"])
}
