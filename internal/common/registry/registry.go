// Package registry holds a small generic factory registry. Storage
// backends register themselves here during init so the engine can pick a
// backend by its configured name without importing every adapter.
package registry

import (
	"fmt"
	"sync"

	"storylab-engine/internal/common/errors"
)

// Factory is anything registrable by a type name.
type Factory interface {
	// GetType returns the name the factory registers under.
	GetType() string
}

// Registry maps type names to factories. Safe for concurrent use.
type Registry[T Factory] struct {
	factories map[string]T
	mu        sync.RWMutex
}

func New[T Factory]() *Registry[T] {
	return &Registry[T]{
		factories: make(map[string]T),
	}
}

// Register adds a factory under the given name, replacing any previous
// registration.
func (r *Registry[T]) Register(factoryType string, factory T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[factoryType] = factory
}

// Get returns the factory registered under the given name.
func (r *Registry[T]) Get(factoryType string) (T, error) {
	r.mu.RLock()
	factory, exists := r.factories[factoryType]
	r.mu.RUnlock()

	if !exists {
		var zero T
		return zero, errors.NotFoundError(fmt.Sprintf("factory type %s", factoryType))
	}

	return factory, nil
}

// Types lists the registered factory names.
func (r *Registry[T]) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for factoryType := range r.factories {
		types = append(types, factoryType)
	}
	return types
}
