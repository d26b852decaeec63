package config_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/openshelf/openshelf/pkg/openshelf/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "memory", cfg.Repo.Type)
	assert.Equal(t, int64(52428800), cfg.Limits.MaxUploadBytes)
	assert.Equal(t, []string{".pdf", ".epub"}, cfg.Limits.AllowedExtensions)
	assert.Equal(t, 72*time.Hour, cfg.Limits.DraftTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("ALLOWED_EXTENSIONS", ".pdf")
	t.Setenv("DRAFT_TTL", "24h")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, int64(1048576), cfg.Limits.MaxUploadBytes)
	assert.Equal(t, []string{".pdf"}, cfg.Limits.AllowedExtensions)
	assert.Equal(t, 24*time.Hour, cfg.Limits.DraftTTL)
}

func TestValidate(t *testing.T) {
	t.Run("postgres requires a database url", func(t *testing.T) {
		t.Setenv("REPOSITORY_TYPE", "postgres")
		_, err := config.Load()
		assert.Error(t, err)
	})

	t.Run("unknown repository type", func(t *testing.T) {
		t.Setenv("REPOSITORY_TYPE", "etcd")
		_, err := config.Load()
		assert.Error(t, err)
	})

	t.Run("production requires secrets", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")
		_, err := config.Load()
		assert.Error(t, err)
	})

	t.Run("partial CDN configuration", func(t *testing.T) {
		t.Setenv("CDN_DOMAIN", "cdn.example.com")
		_, err := config.Load()
		assert.Error(t, err)
	})
}

func TestBuildServiceWithMemoryBackends(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	svc, err := cfg.BuildService(context.Background(), slog.Default())
	require.NoError(t, err)
	assert.NotNil(t, svc)
}
