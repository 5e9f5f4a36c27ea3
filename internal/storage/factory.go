package storage

import (
	"fmt"
	"strconv"
	"strings"

	"storylab-engine/internal/common/errors"
	"storylab-engine/internal/config"
)

// SQLiteConfig configures the SQLite backend. Defined here so the factory
// can build it without importing the adapter package.
type SQLiteConfig struct {
	DatabasePath string
}

func (c *SQLiteConfig) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}

func (c *SQLiteConfig) GetType() string { return "sqlite" }

func (c *SQLiteConfig) GetConnectionString() string { return c.DatabasePath }

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

func (c *PostgresConfig) Validate() error {
	if c.Host == "" || c.Database == "" || c.Username == "" {
		return fmt.Errorf("host, database and username are required")
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	return nil
}

func (c *PostgresConfig) GetType() string { return "postgres" }

func (c *PostgresConfig) GetConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// NewStorage creates a storage adapter based on application configuration.
func NewStorage(cfg *config.Config) (Storage, error) {
	switch cfg.DatabaseType {
	case "sqlite":
		return Create("sqlite", &SQLiteConfig{DatabasePath: cfg.DatabasePath})

	case "postgres":
		port, err := strconv.Atoi(cfg.PostgresPort)
		if err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("invalid POSTGRES_PORT: %s", cfg.PostgresPort))
		}
		return Create("postgres", &PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     port,
			Database: cfg.PostgresDB,
			Username: cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			SSLMode:  cfg.PostgresSSLMode,
		})

	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported database type %q, available: %s",
			cfg.DatabaseType, strings.Join(AvailableTypes(), ", ")))
	}
}
