// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aristath/sipcopy/internal/domain"
	"github.com/joho/godotenv"
)

const (
	defaultSnapshotURL     = "https://www.nseindia.com/api/etf?csv=true&selectValFormat=crores"
	defaultSnapshotReferer = "https://www.nseindia.com/market-data/exchange-traded-funds-etf"
)

// Config holds application configuration
type Config struct {
	DataDir string // Base directory for artifacts, reports and the ledger (always absolute)

	AccountsFile  string // Flat account store
	ReferenceFile string // Index -> average decline table
	SnapshotFile  string // When set, the snapshot is read from disk instead of downloaded

	SnapshotURL     string
	SnapshotReferer string
	FetchAttempts   int
	FetchRetryDelay time.Duration

	BrokerCallTimeout   time.Duration
	BrokerRateLimit     float64 // requests per second per account, 0 = unlimited
	MaxParallelAccounts int
	VerifyOrderStatus   bool

	MarketTimezone string
	Location       *time.Location
	RunSchedule    string

	AllocationConfig string // Optional YAML file overriding allocation parameters

	LogLevel  string
	LogPretty bool

	Brokers BrokerEndpoints
}

// BrokerEndpoints holds base URL overrides for the broker REST APIs.
// Empty values mean the adapter's production default.
type BrokerEndpoints struct {
	ShoonyaURL string
	KiteURL    string
	UpstoxURL  string
	DhanURL    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		AccountsFile:        getEnv("ACCOUNTS_FILE", filepath.Join(absDataDir, "accounts.csv")),
		ReferenceFile:       getEnv("REFERENCE_FILE", filepath.Join(absDataDir, "average_percentage_fall_indices.csv")),
		SnapshotFile:        getEnv("SNAPSHOT_FILE", ""),
		SnapshotURL:         getEnv("SNAPSHOT_URL", defaultSnapshotURL),
		SnapshotReferer:     getEnv("SNAPSHOT_REFERER", defaultSnapshotReferer),
		FetchAttempts:       getEnvAsInt("FETCH_ATTEMPTS", 3),
		FetchRetryDelay:     getEnvAsDuration("FETCH_RETRY_DELAY", 5*time.Second),
		BrokerCallTimeout:   getEnvAsDuration("BROKER_CALL_TIMEOUT", 15*time.Second),
		BrokerRateLimit:     getEnvAsFloat("BROKER_RATE_LIMIT_PER_SEC", 5),
		MaxParallelAccounts: getEnvAsInt("MAX_PARALLEL_ACCOUNTS", 8),
		VerifyOrderStatus:   getEnvAsBool("VERIFY_ORDER_STATUS", false),
		MarketTimezone:      getEnv("MARKET_TIMEZONE", "Asia/Kolkata"),
		RunSchedule:         getEnv("RUN_SCHEDULE", "15 15 * * 1-5"),
		AllocationConfig:    getEnv("ALLOCATION_CONFIG", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogPretty:           getEnvAsBool("LOG_PRETTY", false),
		Brokers: BrokerEndpoints{
			ShoonyaURL: getEnv("SHOONYA_BASE_URL", ""),
			KiteURL:    getEnv("KITE_BASE_URL", ""),
			UpstoxURL:  getEnv("UPSTOX_BASE_URL", ""),
			DhanURL:    getEnv("DHAN_BASE_URL", ""),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks ranges and resolves the market timezone
func (c *Config) Validate() error {
	if c.FetchAttempts < 1 {
		return domain.NewConfigurationError("FETCH_ATTEMPTS must be at least 1, got %d", c.FetchAttempts)
	}
	if c.FetchRetryDelay < 0 {
		return domain.NewConfigurationError("FETCH_RETRY_DELAY must not be negative")
	}
	if c.BrokerCallTimeout <= 0 {
		return domain.NewConfigurationError("BROKER_CALL_TIMEOUT must be positive")
	}
	if c.BrokerRateLimit < 0 {
		return domain.NewConfigurationError("BROKER_RATE_LIMIT_PER_SEC must not be negative")
	}
	if c.MaxParallelAccounts < 1 {
		return domain.NewConfigurationError("MAX_PARALLEL_ACCOUNTS must be at least 1, got %d", c.MaxParallelAccounts)
	}
	if c.SnapshotFile == "" && c.SnapshotURL == "" {
		return domain.NewConfigurationError("either SNAPSHOT_FILE or SNAPSHOT_URL is required")
	}

	loc, err := time.LoadLocation(c.MarketTimezone)
	if err != nil {
		return domain.NewConfigurationError("invalid MARKET_TIMEZONE %q: %v", c.MarketTimezone, err)
	}
	c.Location = loc

	return nil
}

// ReportsDir is where JSON run reports are written
func (c *Config) ReportsDir() string {
	return filepath.Join(c.DataDir, "reports")
}

// LedgerPath is the SQLite run history database
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
}

// AllocationsFile is today's allocation artifact
func (c *Config) AllocationsFile() string {
	return filepath.Join(c.DataDir, "todays_etf.csv")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("5s", "1m") or a bare number of seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
