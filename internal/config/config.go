// Package config provides configuration management for the StoryLab recipe
// engine. It loads configuration from environment variables with sensible
// defaults and validates it so the service starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Optional log file path (default: stdout)
//
// Database Configuration:
//   - DATABASE_TYPE: Database type - "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./storylab.db)
//   - POSTGRES_HOST: PostgreSQL host (required if using PostgreSQL)
//   - POSTGRES_PORT: PostgreSQL port (default: 5432)
//   - POSTGRES_DB: PostgreSQL database name (required if using PostgreSQL)
//   - POSTGRES_USER: PostgreSQL username (required if using PostgreSQL)
//   - POSTGRES_PASSWORD: PostgreSQL password
//   - POSTGRES_SSL_MODE: PostgreSQL SSL mode (default: disable)
//
// Redis Configuration (execution status cache, optional):
//   - REDIS_ENABLED: Enable the Redis status cache (default: false)
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Engine Configuration:
//   - DEFAULT_NODE_TIMEOUT: Per-attempt node timeout (default: 60s)
//   - MAX_CONCURRENT_NODES: Concurrency cap for independent nodes (default: 4)
//   - EXECUTION_RETENTION: How long terminal executions are kept (default: 720h)
//   - CLEANUP_SCHEDULE: Cron expression for retention cleanup (default: "0 * * * *")
//
// Capability Providers:
//   - PROVIDER_HTTP_ENDPOINTS: Comma-separated name=baseURL pairs for HTTP
//     providers (e.g. "openai=https://api.example.com/v1")
//   - PROVIDER_HTTP_API_KEY: Bearer token sent to HTTP providers
//   - PROVIDER_STATIC_ENABLED: Register the static echo provider (default: true)
//
// Object Storage (media uploads from data_processing nodes):
//   - S3_ENABLED: Enable the S3 object store (default: false)
//   - S3_BUCKET: Bucket name (required when enabled)
//   - S3_REGION: AWS region (default: us-east-1)
//   - S3_PUBLIC_BASE_URL: Optional public URL prefix for uploaded objects
//   - S3_ACCESS_KEY_ID / S3_SECRET_ACCESS_KEY: Static credentials; when
//     unset the default AWS credential chain applies
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the recipe engine.
type Config struct {
	// Application settings
	Port     string
	LogLevel string

	// Database configuration
	DatabaseType     string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Redis status cache
	RedisEnabled  bool
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	// Engine settings
	DefaultNodeTimeout time.Duration
	MaxConcurrentNodes int
	ExecutionRetention time.Duration
	CleanupSchedule    string

	// Capability providers
	ProviderHTTPEndpoints map[string]string
	ProviderHTTPAPIKey    string
	ProviderStaticEnabled bool

	// Object storage
	S3Enabled         bool
	S3Bucket          string
	S3Region          string
	S3PublicBaseURL   string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Load reads configuration from environment variables, applying defaults.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./storylab.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", ""),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", ""),
		PostgresUser:     getEnv("POSTGRES_USER", ""),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisPoolSize: getEnvInt("REDIS_POOL_SIZE", 10),

		DefaultNodeTimeout: getEnvDuration("DEFAULT_NODE_TIMEOUT", 60*time.Second),
		MaxConcurrentNodes: getEnvInt("MAX_CONCURRENT_NODES", 4),
		ExecutionRetention: getEnvDuration("EXECUTION_RETENTION", 720*time.Hour),
		CleanupSchedule:    getEnv("CLEANUP_SCHEDULE", "0 * * * *"),

		ProviderHTTPEndpoints: parseEndpoints(getEnv("PROVIDER_HTTP_ENDPOINTS", "")),
		ProviderHTTPAPIKey:    getEnv("PROVIDER_HTTP_API_KEY", ""),
		ProviderStaticEnabled: getEnvBool("PROVIDER_STATIC_ENABLED", true),

		S3Enabled:         getEnvBool("S3_ENABLED", false),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3PublicBaseURL:   getEnv("S3_PUBLIC_BASE_URL", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
	}
}

// Validate checks the configuration for inconsistencies that would prevent
// the service from operating.
func (c *Config) Validate() error {
	switch c.DatabaseType {
	case "sqlite":
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required for sqlite")
		}
	case "postgres":
		if c.PostgresHost == "" || c.PostgresDB == "" || c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_HOST, POSTGRES_DB and POSTGRES_USER are required for postgres")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_TYPE: %s", c.DatabaseType)
	}

	if c.RedisDB < 0 || c.RedisDB > 15 {
		return fmt.Errorf("REDIS_DB must be between 0 and 15, got %d", c.RedisDB)
	}

	if c.DefaultNodeTimeout <= 0 {
		return fmt.Errorf("DEFAULT_NODE_TIMEOUT must be positive")
	}

	if c.MaxConcurrentNodes < 1 {
		return fmt.Errorf("MAX_CONCURRENT_NODES must be at least 1")
	}

	if c.S3Enabled && c.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when S3_ENABLED is true")
	}

	return nil
}

// parseEndpoints parses "name=url,name2=url2" into a map. Malformed pairs
// are skipped.
func parseEndpoints(raw string) map[string]string {
	endpoints := make(map[string]string)
	if raw == "" {
		return endpoints
	}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		endpoints[parts[0]] = parts[1]
	}
	return endpoints
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
