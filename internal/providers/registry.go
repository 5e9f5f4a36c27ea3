package providers

import (
	"fmt"
	"sort"
	"sync"

	"storylab-engine/internal/common/registry"
)

// Factories is the global factory registry; provider packages register
// themselves in init, mirroring the storage backends.
var Factories = registry.New[Factory]()

// RegisterFactory adds a provider factory to the global registry.
func RegisterFactory(providerType string, factory Factory) {
	Factories.Register(providerType, factory)
}

// Registry holds the provider instances available to a running engine,
// keyed by provider name.
type Registry struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider instance. Registering an existing name replaces it.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider with the given name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider not registered: %s", name)
	}
	return p, nil
}

// Names lists registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
