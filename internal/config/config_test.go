package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/sipcopy/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "accounts.csv"), cfg.AccountsFile)
	assert.Equal(t, filepath.Join(dir, "average_percentage_fall_indices.csv"), cfg.ReferenceFile)
	assert.Equal(t, 3, cfg.FetchAttempts)
	assert.Equal(t, 5*time.Second, cfg.FetchRetryDelay)
	assert.Equal(t, 15*time.Second, cfg.BrokerCallTimeout)
	assert.Equal(t, "15 15 * * 1-5", cfg.RunSchedule)
	assert.False(t, cfg.VerifyOrderStatus)
	require.NotNil(t, cfg.Location)
	assert.Equal(t, "Asia/Kolkata", cfg.Location.String())
	assert.Equal(t, filepath.Join(dir, "ledger.db"), cfg.LedgerPath())
	assert.Equal(t, filepath.Join(dir, "reports"), cfg.ReportsDir())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("FETCH_ATTEMPTS", "5")
	t.Setenv("FETCH_RETRY_DELAY", "2")
	t.Setenv("BROKER_CALL_TIMEOUT", "30s")
	t.Setenv("VERIFY_ORDER_STATUS", "true")
	t.Setenv("BROKER_RATE_LIMIT_PER_SEC", "2.5")
	t.Setenv("DHAN_BASE_URL", "http://localhost:9999")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.FetchAttempts)
	assert.Equal(t, 2*time.Second, cfg.FetchRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.BrokerCallTimeout)
	assert.True(t, cfg.VerifyOrderStatus)
	assert.Equal(t, 2.5, cfg.BrokerRateLimit)
	assert.Equal(t, "http://localhost:9999", cfg.Brokers.DhanURL)
}

func TestLoad_InvalidValueFallsBackToDefault(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("MAX_PARALLEL_ACCOUNTS", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxParallelAccounts)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			FetchAttempts:       3,
			BrokerCallTimeout:   time.Second,
			MaxParallelAccounts: 1,
			SnapshotURL:         "http://example.invalid",
			MarketTimezone:      "Asia/Kolkata",
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "zero attempts", mutate: func(c *Config) { c.FetchAttempts = 0 }},
		{name: "zero timeout", mutate: func(c *Config) { c.BrokerCallTimeout = 0 }},
		{name: "negative rate", mutate: func(c *Config) { c.BrokerRateLimit = -1 }},
		{name: "no parallelism", mutate: func(c *Config) { c.MaxParallelAccounts = 0 }},
		{name: "no snapshot source", mutate: func(c *Config) { c.SnapshotURL = "" }},
		{name: "bad timezone", mutate: func(c *Config) { c.MarketTimezone = "Mars/Olympus" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, domain.IsConfigurationError(err))
		})
	}

	t.Run("valid", func(t *testing.T) {
		c := valid()
		require.NoError(t, c.Validate())
		assert.NotNil(t, c.Location)
	})
}
