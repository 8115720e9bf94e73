package config

import (
	"os"
	"strconv"
)

// Config holds all configuration for the service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	App      AppConfig
	Gate     GateConfig
	Usage    UsageConfig
	Billing  BillingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// AppConfig holds application configuration
type AppConfig struct {
	Environment string
	LogLevel    string
	// BaseDomain is the domain tenant subdomains hang off
	// (e.g. host "aegean-resorts.hotelhub.app" resolves tenant "aegean-resorts")
	BaseDomain string
	// AdminToken guards the administrative API surface. The full
	// authorization story lives upstream; this is the service-side check.
	AdminToken string
	// JWTSecret enables the bearer-token tenant claim source of the
	// resolver when non-empty
	JWTSecret string
}

// GateConfig holds tenant gate configuration
type GateConfig struct {
	// CacheTTLSeconds is how long a directory lookup is cached in Redis
	CacheTTLSeconds int
	// LookupTimeoutMS bounds a single directory lookup; exceeding it is a
	// transient failure (reject closed), not "tenant not found"
	LookupTimeoutMS int
}

// UsageConfig holds usage recording configuration
type UsageConfig struct {
	// QueueSize is the recorder's buffered channel capacity; increments
	// beyond it are dropped (and counted) rather than blocking requests
	QueueSize int
	// Workers is the number of recorder goroutines draining the queue
	Workers int
	// FlushTimeoutMS bounds a single increment write
	FlushTimeoutMS int
}

// BillingConfig holds subscription defaults
type BillingConfig struct {
	// TrialDays is the length of the trial granted at tenant creation
	TrialDays int
	// DefaultTier is assigned when a create request names no tier
	DefaultTier string
}

// New creates a new configuration instance
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: getEnvWithDefault("SERVER_HOST", "0.0.0.0"),
			Port: getEnvWithDefault("SERVER_PORT", "8090"),
		},
		Database: DatabaseConfig{
			Host:     getEnvWithDefault("DB_HOST", "localhost"),
			Port:     getEnvWithDefault("DB_PORT", "5432"),
			User:     getEnvWithDefault("DB_USER", "postgres"),
			Password: getEnvWithDefault("DB_PASSWORD", "postgres"),
			Name:     getEnvWithDefault("DB_NAME", "hotelhub"),
			SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnvWithDefault("REDIS_HOST", "localhost"),
			Port:     getEnvWithDefault("REDIS_PORT", "6379"),
			Password: getEnvWithDefault("REDIS_PASSWORD", ""),
			DB:       getEnvAsIntWithDefault("REDIS_DB", 0),
		},
		App: AppConfig{
			Environment: getEnvWithDefault("APP_ENV", "development"),
			LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
			BaseDomain:  getEnvWithDefault("BASE_DOMAIN", "hotelhub.app"),
			AdminToken:  getEnvWithDefault("ADMIN_API_TOKEN", ""),
			JWTSecret:   getEnvWithDefault("JWT_SECRET", ""),
		},
		Gate: GateConfig{
			CacheTTLSeconds: getEnvAsIntWithDefault("GATE_CACHE_TTL_SECONDS", 30),
			LookupTimeoutMS: getEnvAsIntWithDefault("GATE_LOOKUP_TIMEOUT_MS", 2000),
		},
		Usage: UsageConfig{
			QueueSize:      getEnvAsIntWithDefault("USAGE_QUEUE_SIZE", 4096),
			Workers:        getEnvAsIntWithDefault("USAGE_WORKERS", 2),
			FlushTimeoutMS: getEnvAsIntWithDefault("USAGE_FLUSH_TIMEOUT_MS", 5000),
		},
		Billing: BillingConfig{
			TrialDays:   getEnvAsIntWithDefault("BILLING_TRIAL_DAYS", 14),
			DefaultTier: getEnvWithDefault("BILLING_DEFAULT_TIER", "trial"),
		},
	}
}

// getEnvWithDefault gets environment variable with a default fallback
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntWithDefault gets environment variable as integer with default fallback
func getEnvAsIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
