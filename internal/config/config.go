// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Redis settings
	RedisURL string

	// SQLite settings
	SQLitePath string

	// JWT settings
	JWTSecret string

	// Generation backend settings
	AnthropicAPIKey   string
	OpenAIAPIKey      string
	DefaultProvider   string
	GenerationTimeout time.Duration

	// Daily quota (admission control)
	FreeDailyLimit    int
	ProDailyLimit     int
	QuotaTimezone     string
	AdmissionFailOpen bool

	// Listing cache
	ListingCacheTTL time.Duration

	// Worker pool
	WorkerCount   int
	JobAckWait    time.Duration
	JobMaxDeliver int

	// Transport rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables. A local .env file
// is loaded first if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// SQLite
		SQLitePath: getEnv("SQLITE_PATH", "./data/chatrooms.db"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Generation backend
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		DefaultProvider:   getEnv("DEFAULT_PROVIDER", "openai"),
		GenerationTimeout: getDurationEnv("GENERATION_TIMEOUT", 60*time.Second),

		// Daily quota
		FreeDailyLimit:    getIntEnv("FREE_DAILY_LIMIT", 5),
		ProDailyLimit:     getIntEnv("PRO_DAILY_LIMIT", 50),
		QuotaTimezone:     getEnv("QUOTA_TIMEZONE", "UTC"),
		AdmissionFailOpen: getBoolEnv("ADMISSION_FAIL_OPEN", false),

		// Listing cache
		ListingCacheTTL: getDurationEnv("LISTING_CACHE_TTL", 5*time.Minute),

		// Worker pool
		WorkerCount:   getIntEnv("WORKER_COUNT", 4),
		JobAckWait:    getDurationEnv("JOB_ACK_WAIT", 2*time.Minute),
		JobMaxDeliver: getIntEnv("JOB_MAX_DELIVER", 5),

		// Transport rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
