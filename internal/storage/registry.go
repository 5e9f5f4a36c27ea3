package storage

import (
	"storylab-engine/internal/common/registry"
)

// DefaultRegistry holds the storage backend factories. Backends register
// themselves in their package init.
var DefaultRegistry = registry.New[StorageFactory]()

// Register adds a storage factory to the default registry.
func Register(storageType string, factory StorageFactory) {
	DefaultRegistry.Register(storageType, factory)
}

// Create builds a storage adapter of the given type from config.
func Create(storageType string, config StorageConfig) (Storage, error) {
	factory, err := DefaultRegistry.Get(storageType)
	if err != nil {
		return nil, err
	}
	return factory.Create(config)
}

// AvailableTypes lists the registered backend types.
func AvailableTypes() []string {
	return DefaultRegistry.Types()
}
