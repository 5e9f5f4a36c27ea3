// Package circuitbreaker provides circuit breaker functionality using Sony's
// gobreaker, shielding the engine from providers that are hard-down.
package circuitbreaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"storylab-engine/internal/common/logging"
)

// Config holds the configuration for a circuit breaker
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures int
	// Timeout is how long the circuit stays open before transitioning to half-open
	Timeout time.Duration
	// MaxConcurrentRequests is the number of requests allowed in half-open state
	MaxConcurrentRequests int
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		MaxFailures:           5,
		Timeout:               60 * time.Second,
		MaxConcurrentRequests: 1,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.MaxFailures <= 0 {
		return fmt.Errorf("MaxFailures must be positive, got %d", c.MaxFailures)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("MaxConcurrentRequests must be positive, got %d", c.MaxConcurrentRequests)
	}
	return nil
}

// Manager maintains one circuit breaker per provider name.
type Manager struct {
	config   Config
	breakers map[string]*gobreaker.CircuitBreaker
	mu       sync.Mutex
	logger   logging.Logger
}

// NewManager creates a circuit breaker manager with the given config.
func NewManager(config Config, logger logging.Logger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Manager{
		config:   config,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		logger:   logger,
	}, nil
}

// Execute runs fn through the circuit breaker for the named provider.
func (m *Manager) Execute(name string, fn func() (interface{}, error)) (interface{}, error) {
	return m.breaker(name).Execute(fn)
}

func (m *Manager) breaker(name string) *gobreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, ok := m.breakers[name]; ok {
		return cb
	}

	maxFailures := uint32(m.config.MaxFailures)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(m.config.MaxConcurrentRequests),
		Timeout:     m.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.logger.Warn("Circuit breaker state changed",
				logging.Field{Key: "breaker", Value: name},
				logging.Field{Key: "from", Value: from.String()},
				logging.Field{Key: "to", Value: to.String()},
			)
		},
	})

	m.breakers[name] = cb
	return cb
}
