// Package config provides configuration management for the reserve tracker.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Chains        ChainsConfig
	MarketData    MarketDataConfig
	Snapshot      SnapshotConfig
	Wallets       WalletsConfig
	Notifications NotificationsConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Logging       LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration.
// The series mirror is skipped when Enabled is false.
type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ChainsConfig holds the networks scanned for wallet balances
type ChainsConfig struct {
	Enabled []string
	Chains  map[string]ChainConfig
}

// ChainConfig holds configuration for a specific network
type ChainConfig struct {
	RPCURLs []string
	Timeout time.Duration
}

// MarketDataConfig holds market data provider configuration
type MarketDataConfig struct {
	FMPAPIKey        string
	FMPBaseURL       string
	CoinGeckoAPIKey  string
	CoinGeckoBaseURL string
	RequestsPerSec   float64
	CacheTTL         time.Duration
	ProviderTimeout  time.Duration
	MaxRetries       int
}

// SnapshotConfig holds daily snapshot thresholds and limits
type SnapshotConfig struct {
	EligibilityThreshold   decimal.Decimal // minimum reserve for aggregate inclusion (strictly greater)
	AlertAbsoluteThreshold decimal.Decimal // reserve diff that fires an alert (inclusive)
	AlertPercentThreshold  decimal.Decimal // |pct| that fires an alert (strictly greater)
	OverwriteAlertDelta    decimal.Decimal // same-day overwrite must move reserve more than this to alert
	Concurrency            int
	RunTimeout             time.Duration
	ScheduleHourUTC        int
}

// WalletsConfig holds wallet balance refresh configuration
type WalletsConfig struct {
	RefreshInterval time.Duration
	Concurrency     int
}

// NotificationsConfig holds change alert delivery configuration
type NotificationsConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// AuthConfig holds admin authentication configuration
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	Issuer    string
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string
	Format      string
	SentryDSN   string
	Environment string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "eth_reserves"),
				User:           getEnv("POSTGRES_USER", "reserves"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 25),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "eth_reserves"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		MarketData: MarketDataConfig{
			FMPAPIKey:        getEnv("FMP_API_KEY", ""),
			FMPBaseURL:       getEnv("FMP_BASE_URL", "https://financialmodelingprep.com/api/v3"),
			CoinGeckoAPIKey:  getEnv("COINGECKO_API_KEY", ""),
			CoinGeckoBaseURL: getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
			RequestsPerSec:   getEnvAsFloat("MARKET_DATA_RPS", 5),
			CacheTTL:         getEnvAsDuration("MARKET_DATA_CACHE_TTL", 10*time.Minute),
			ProviderTimeout:  getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second),
			MaxRetries:       getEnvAsInt("MARKET_DATA_MAX_RETRIES", 3),
		},
		Snapshot: SnapshotConfig{
			EligibilityThreshold:   getEnvAsDecimal("SNAPSHOT_ELIGIBILITY_THRESHOLD", decimal.NewFromInt(100)),
			AlertAbsoluteThreshold: getEnvAsDecimal("SNAPSHOT_ALERT_ABSOLUTE_THRESHOLD", decimal.NewFromInt(50)),
			AlertPercentThreshold:  getEnvAsDecimal("SNAPSHOT_ALERT_PERCENT_THRESHOLD", decimal.NewFromInt(1)),
			OverwriteAlertDelta:    getEnvAsDecimal("SNAPSHOT_OVERWRITE_ALERT_DELTA", decimal.NewFromInt(10)),
			Concurrency:            getEnvAsInt("SNAPSHOT_CONCURRENCY", 8),
			RunTimeout:             getEnvAsDuration("SNAPSHOT_RUN_TIMEOUT", 15*time.Minute),
			ScheduleHourUTC:        getEnvAsInt("SNAPSHOT_SCHEDULE_HOUR_UTC", 0),
		},
		Wallets: WalletsConfig{
			RefreshInterval: getEnvAsDuration("WALLET_REFRESH_INTERVAL", time.Hour),
			Concurrency:     getEnvAsInt("WALLET_REFRESH_CONCURRENCY", 4),
		},
		Notifications: NotificationsConfig{
			WebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),
			Timeout:    getEnvAsDuration("ALERT_WEBHOOK_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getEnvAsDuration("JWT_TOKEN_TTL", 12*time.Hour),
			Issuer:    getEnv("JWT_ISSUER", "eth-reserves"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 300),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Format:      getEnv("LOG_FORMAT", "json"),
			SentryDSN:   getEnv("SENTRY_DSN", ""),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
	}

	config.Chains = loadChainConfigs()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that would make the binaries misbehave silently
func (c *Config) Validate() error {
	if c.Snapshot.Concurrency <= 0 {
		return fmt.Errorf("SNAPSHOT_CONCURRENCY must be positive, got %d", c.Snapshot.Concurrency)
	}
	if c.Snapshot.ScheduleHourUTC < 0 || c.Snapshot.ScheduleHourUTC > 23 {
		return fmt.Errorf("SNAPSHOT_SCHEDULE_HOUR_UTC must be within 0-23, got %d", c.Snapshot.ScheduleHourUTC)
	}
	if c.Wallets.Concurrency <= 0 {
		return fmt.Errorf("WALLET_REFRESH_CONCURRENCY must be positive, got %d", c.Wallets.Concurrency)
	}
	if c.Snapshot.EligibilityThreshold.IsNegative() {
		return fmt.Errorf("SNAPSHOT_ELIGIBILITY_THRESHOLD must not be negative")
	}
	return nil
}

// loadChainConfigs loads network-specific RPC endpoints
func loadChainConfigs() ChainsConfig {
	enabledChains := strings.Split(getEnv("ENABLED_CHAINS", "ethereum,arbitrum,optimism,base"), ",")

	enabled := make([]string, 0, len(enabledChains))
	chains := make(map[string]ChainConfig)
	for _, chain := range enabledChains {
		chain = strings.TrimSpace(chain)
		if chain == "" {
			continue
		}

		prefix := strings.ToUpper(chain)
		enabled = append(enabled, chain)
		chains[chain] = ChainConfig{
			RPCURLs: splitList(getEnv(prefix+"_RPC_URLS", "")),
			Timeout: getEnvAsDuration(prefix+"_RPC_TIMEOUT", 10*time.Second),
		}
	}

	return ChainsConfig{
		Enabled: enabled,
		Chains:  chains,
	}
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDecimal gets an environment variable as a decimal with a default value
func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
