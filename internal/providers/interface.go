// Package providers defines the capability provider abstraction: an opaque,
// possibly-slow, possibly-failing remote generation service selected by name.
// Concrete providers register through factories; the orchestrator never
// branches on provider strings itself.
package providers

import (
	"context"
	"encoding/json"

	"storylab-engine/internal/models"
)

// Kind is the capability requested from a provider.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// KindForNodeType maps a generation node type to the provider capability.
func KindForNodeType(t models.NodeType) (Kind, bool) {
	switch t {
	case models.NodeTypeTextGeneration:
		return KindText, true
	case models.NodeTypeImageGeneration:
		return KindImage, true
	case models.NodeTypeVideoGeneration:
		return KindVideo, true
	}
	return "", false
}

// Request is a provider-agnostic generation request.
type Request struct {
	Kind        Kind                   `json:"kind"`
	Model       string                 `json:"model"`
	Prompt      string                 `json:"prompt"`
	Temperature float64                `json:"temperature"`
	MaxTokens   int                    `json:"max_tokens,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// Result is a normalized provider response. Raw preserves the provider's
// response body for diagnosis; Output is the value handed downstream.
type Result struct {
	Output     interface{}     `json:"output"`
	Raw        json.RawMessage `json:"raw,omitempty"`
	TokensUsed int             `json:"tokens_used,omitempty"`
	Model      string          `json:"model,omitempty"`
}

// Provider is a capability provider. Generate must honor ctx cancellation
// and deadlines; it is the engine's only suspension point.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *Request) (*Result, error)
}

// Config carries the settings a factory needs to build a provider instance.
type Config struct {
	Name    string
	BaseURL string
	APIKey  string
}

// Factory builds provider instances of one type.
type Factory interface {
	Create(config Config) (Provider, error)
	GetType() string
}
