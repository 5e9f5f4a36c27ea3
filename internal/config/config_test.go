package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, "./storylab.db", cfg.DatabasePath)
	assert.False(t, cfg.RedisEnabled)
	assert.Equal(t, 60*time.Second, cfg.DefaultNodeTimeout)
	assert.Equal(t, 4, cfg.MaxConcurrentNodes)
	assert.Equal(t, 720*time.Hour, cfg.ExecutionRetention)
	assert.Equal(t, "0 * * * *", cfg.CleanupSchedule)
	assert.True(t, cfg.ProviderStaticEnabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_DB", "storylab")
	t.Setenv("POSTGRES_USER", "app")
	t.Setenv("DEFAULT_NODE_TIMEOUT", "90s")
	t.Setenv("MAX_CONCURRENT_NODES", "8")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseType)
	assert.Equal(t, 90*time.Second, cfg.DefaultNodeTimeout)
	assert.Equal(t, 8, cfg.MaxConcurrentNodes)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_PostgresRequiresConnectionDetails(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "postgres")

	cfg := Load()
	assert.Error(t, cfg.Validate())
}

func TestValidate_UnsupportedDatabase(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "orbital")

	cfg := Load()
	assert.Error(t, cfg.Validate())
}

func TestValidate_RedisDBRange(t *testing.T) {
	t.Setenv("REDIS_DB", "99")

	cfg := Load()
	assert.Error(t, cfg.Validate())
}

func TestValidate_S3RequiresBucket(t *testing.T) {
	t.Setenv("S3_ENABLED", "true")

	cfg := Load()
	assert.Error(t, cfg.Validate())

	t.Setenv("S3_BUCKET", "renders")
	cfg = Load()
	assert.NoError(t, cfg.Validate())
}

func TestParseEndpoints(t *testing.T) {
	t.Setenv("PROVIDER_HTTP_ENDPOINTS", "openai=https://api.openai.example/v1, fal=https://fal.example")

	cfg := Load()
	require.Len(t, cfg.ProviderHTTPEndpoints, 2)
	assert.Equal(t, "https://api.openai.example/v1", cfg.ProviderHTTPEndpoints["openai"])
	assert.Equal(t, "https://fal.example", cfg.ProviderHTTPEndpoints["fal"])
}

func TestParseEndpoints_SkipsMalformedPairs(t *testing.T) {
	t.Setenv("PROVIDER_HTTP_ENDPOINTS", "good=https://x.example,broken,=nourl,noval=")

	cfg := Load()
	require.Len(t, cfg.ProviderHTTPEndpoints, 1)
	assert.Contains(t, cfg.ProviderHTTPEndpoints, "good")
}
