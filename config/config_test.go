package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"laststock/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "jwt")
	t.Setenv("ETAG_SECRET", "etag")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg := config.LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.StorageDriver)
	assert.Equal(t, "", cfg.DatabaseURL)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, time.Hour, cfg.IdempotencyCleanupInterval)
	assert.Equal(t, 60*time.Minute, cfg.TokenExpiry)
	assert.Equal(t, 5, cfg.LowStockThreshold)
	assert.Equal(t, "laststock.events", cfg.KafkaTopic)
	assert.Equal(t, "", cfg.KafkaBroker)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "jwt")
	t.Setenv("ETAG_SECRET", "etag")
	t.Setenv("DATABASE_URL", "postgres://localhost/laststock")
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("IDEMPOTENCY_TTL_HOURS", "48")
	t.Setenv("LOW_STOCK_THRESHOLD", "abc")

	cfg := config.LoadConfig()

	assert.Equal(t, "postgres", cfg.StorageDriver)
	assert.Equal(t, "pgx", cfg.DBDriver)
	assert.Equal(t, "postgres://localhost/laststock", cfg.DatabaseURL)
	assert.Equal(t, 48*time.Hour, cfg.IdempotencyTTL)
	// Valor inválido cai no padrão.
	assert.Equal(t, 5, cfg.LowStockThreshold)
}
