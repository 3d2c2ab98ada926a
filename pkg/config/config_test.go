package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/spa-ledger-api/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Ledger.MaxAttempts)
	assert.Equal(t, int64(1000), cfg.Billing.LoyaltyPointValue)
	assert.Equal(t, "HD", cfg.Billing.InvoicePrefix)
	assert.Equal(t, 24*time.Hour, cfg.Redis.IdempotencyTTL)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.DB.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("LEDGER_MAX_ATTEMPTS", "5")
	t.Setenv("LOYALTY_POINT_VALUE", "500")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("IDEMPOTENCY_TTL_MINUTES", "10")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PASSWORD", "p@ss word")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Ledger.MaxAttempts)
	assert.Equal(t, int64(500), cfg.Billing.LoyaltyPointValue)
	assert.Equal(t, 10*time.Minute, cfg.Redis.IdempotencyTTL)
	assert.True(t, cfg.Redis.Enabled())
	assert.True(t, cfg.DB.Enabled())
	assert.Contains(t, cfg.DB.ConnectionString(), "db:5432/spa_ledger")
	assert.NotContains(t, cfg.DB.ConnectionString(), "p@ss word")
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("LEDGER_MAX_ATTEMPTS", "0")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	_, err := config.Load()
	assert.Error(t, err)
}
