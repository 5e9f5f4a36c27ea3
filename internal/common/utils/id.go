// Package utils provides utility functions for the recipe engine:
// ID generation and retry logic with exponential backoff.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lucsky/cuid"
)

// GenerateRandomID generates a cryptographically secure random hex ID of the
// given length. Each byte produces two hex characters, so length should be even.
func GenerateRandomID(length int) (string, error) {
	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// NewExecutionID generates a collision-resistant, sortable execution ID.
func NewExecutionID() string {
	return "exec-" + cuid.New()
}

// NewRecipeID generates a UUID-based recipe ID.
func NewRecipeID() string {
	return "recipe-" + uuid.NewString()
}

// GenerateRequestID generates a unique request ID for tracing and correlation
// in the format "req-{randomHex}-{timestamp}".
func GenerateRequestID() (string, error) {
	id, err := GenerateRandomID(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return fmt.Sprintf("req-%s-%d", id, time.Now().Unix()), nil
}

// MustGenerateRequestID generates a request ID or panics on failure.
func MustGenerateRequestID() string {
	id, err := GenerateRequestID()
	if err != nil {
		panic(fmt.Sprintf("failed to generate request ID: %v", err))
	}
	return id
}
