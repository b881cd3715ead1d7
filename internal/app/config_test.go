package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("BILLING_API_URL", "https://billing.example.test/v2")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
	require.Equal(t, 30*time.Second, cfg.BillingAPITimeout)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.Equal(t, 2160, cfg.JournalRetentionHours())
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("BILLING_API_URL", "http://localhost:9000/v2")
	t.Setenv("APP_ENV", "production")
	t.Setenv("BILLING_API_TIMEOUT", "5s")
	t.Setenv("JOURNAL_RETENTION", "48h")
	t.Setenv("WORKER_CONCURRENCY", "12")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, 5*time.Second, cfg.BillingAPITimeout)
	require.Equal(t, 48, cfg.JournalRetentionHours())
	require.Equal(t, 12, cfg.WorkerConcurrency)
}

func TestLoadConfigRequiresBillingAPI(t *testing.T) {
	t.Setenv("BILLING_API_URL", "")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("BILLING_API_URL", "billing.example.test/v2")
	_, err = LoadConfig()
	require.Error(t, err)

	t.Setenv("BILLING_API_URL", "ftp://billing.example.test/v2")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsNonPositiveRetention(t *testing.T) {
	t.Setenv("BILLING_API_URL", "https://billing.example.test/v2")
	t.Setenv("JOURNAL_RETENTION", "0s")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, "DEBUG", parseLevel(&Config{LogLevel: "debug"}).String())
	require.Equal(t, "WARN", parseLevel(&Config{LogLevel: "WARN"}).String())
	require.Equal(t, "INFO", parseLevel(&Config{LogLevel: "verbose"}).String())
	require.Equal(t, "INFO", parseLevel(nil).String())
}
