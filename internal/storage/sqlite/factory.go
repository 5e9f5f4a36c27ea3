package sqlite

import (
	"fmt"

	"storylab-engine/internal/storage"
)

type Factory struct{}

func (f *Factory) Create(config storage.StorageConfig) (storage.Storage, error) {
	sqliteConfig, ok := config.(*storage.SQLiteConfig)
	if !ok {
		return nil, fmt.Errorf("invalid config type for SQLite storage")
	}

	return NewAdapter(sqliteConfig)
}

func (f *Factory) GetType() string {
	return "sqlite"
}

func init() {
	storage.Register("sqlite", &Factory{})
}
