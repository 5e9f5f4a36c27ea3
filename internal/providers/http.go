package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storylab-engine/internal/common/errors"
	"storylab-engine/internal/common/logging"
)

// HTTPProvider invokes a remote generation service over a generic JSON
// contract: POST {baseURL}/generate with the Request body, expecting a JSON
// object carrying at least an "output" field and optionally "tokens_used".
type HTTPProvider struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
	logger  logging.Logger
}

type httpResponse struct {
	Output     interface{} `json:"output"`
	TokensUsed int         `json:"tokens_used"`
	Model      string      `json:"model"`
	Error      string      `json:"error"`
}

// NewHTTPProvider creates an HTTP provider. Per-request deadlines come from
// the caller's context; the client timeout is only a safety net.
func NewHTTPProvider(config Config) (*HTTPProvider, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("provider base URL is required")
	}

	return &HTTPProvider{
		name:    config.Name,
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
		logger: logging.WithFields(logging.Field{Key: "provider", Value: config.Name}),
	}, nil
}

func (p *HTTPProvider) Name() string {
	return p.name
}

// Generate posts the request and normalizes the response.
func (p *HTTPProvider) Generate(ctx context.Context, req *Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.InternalError("failed to encode provider request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, errors.InternalError("failed to build provider request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.TimeoutError(fmt.Sprintf("provider %s call", p.name))
		}
		return nil, errors.ConnectionError(fmt.Sprintf("provider %s unreachable", p.name), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, errors.ConnectionError(fmt.Sprintf("reading provider %s response", p.name), err)
	}

	p.logger.Debug("Provider call completed",
		logging.Field{Key: "model", Value: req.Model},
		logging.Field{Key: "status", Value: resp.StatusCode},
		logging.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.ExecutionError(
			fmt.Sprintf("provider %s returned status %d", p.name, resp.StatusCode), nil,
		).WithContext("body", string(raw))
	}

	var parsed httpResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.ExecutionError(fmt.Sprintf("provider %s returned invalid JSON", p.name), err)
	}
	if parsed.Error != "" {
		return nil, errors.ExecutionError(fmt.Sprintf("provider %s: %s", p.name, parsed.Error), nil)
	}

	return &Result{
		Output:     parsed.Output,
		Raw:        raw,
		TokensUsed: parsed.TokensUsed,
		Model:      parsed.Model,
	}, nil
}

// HTTPFactory builds HTTP providers.
type HTTPFactory struct{}

func (f *HTTPFactory) Create(config Config) (Provider, error) {
	return NewHTTPProvider(config)
}

func (f *HTTPFactory) GetType() string {
	return "http"
}

func init() {
	RegisterFactory("http", &HTTPFactory{})
}
