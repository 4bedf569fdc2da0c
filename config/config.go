package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"copyTradeEngine/internal/adapters/logger"
)

// Config holds all worker configuration.
type Config struct {
	// Worker
	WorkerID          string
	MaxParallel       int           // concurrent subscribers during fan-out
	SubscriberTimeout time.Duration // per-subscriber slice of a cycle
	PopTimeout        time.Duration // blocking pop timeout

	// Task queue
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	QueueName     string

	// Exchange
	IsTestnet bool

	// Trading costs and floors
	CommissionRate float64
	GSTRate        float64
	MinQuantity    float64

	// Trade reporting (optional, empty disables)
	ReportingEndpoint string
	ReportingTimeout  time.Duration

	// Trade journal
	DBPath string

	// Metrics (optional, empty disables)
	MetricsAddr string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string // "json" or "text"
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Worker
	hostname, _ := os.Hostname()
	cfg.WorkerID = getEnv("WORKER_ID", hostname)

	cfg.MaxParallel, err = getEnvAsIntRequired("MAX_PARALLEL_SUBSCRIBERS", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_PARALLEL_SUBSCRIBERS: %v", err))
	} else if cfg.MaxParallel <= 0 {
		errs = append(errs, "MAX_PARALLEL_SUBSCRIBERS must be positive")
	}

	subscriberTimeoutSeconds := getEnvAsInt("SUBSCRIBER_TIMEOUT_SECONDS", 30)
	if subscriberTimeoutSeconds <= 0 {
		errs = append(errs, "SUBSCRIBER_TIMEOUT_SECONDS must be positive")
	}
	cfg.SubscriberTimeout = time.Duration(subscriberTimeoutSeconds) * time.Second

	popTimeoutSeconds := getEnvAsInt("POP_TIMEOUT_SECONDS", 5)
	if popTimeoutSeconds <= 0 {
		errs = append(errs, "POP_TIMEOUT_SECONDS must be positive")
	}
	cfg.PopTimeout = time.Duration(popTimeoutSeconds) * time.Second

	// Task queue
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	if cfg.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR must be set")
	}
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvAsInt("REDIS_DB", 0)
	cfg.QueueName = getEnv("QUEUE_NAME", "engine:tasks")
	if cfg.QueueName == "" {
		errs = append(errs, "QUEUE_NAME must be set")
	}

	// Exchange
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	// Trading costs and floors
	cfg.CommissionRate, err = getEnvAsFloatRequired("COMMISSION_RATE", 0.0004)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid COMMISSION_RATE: %v", err))
	} else if cfg.CommissionRate < 0 || cfg.CommissionRate >= 1.0 {
		errs = append(errs, "COMMISSION_RATE must be between 0.0 and 1.0")
	}

	cfg.GSTRate, err = getEnvAsFloatRequired("GST_RATE", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid GST_RATE: %v", err))
	} else if cfg.GSTRate < 0 || cfg.GSTRate >= 1.0 {
		errs = append(errs, "GST_RATE must be between 0.0 and 1.0")
	}

	cfg.MinQuantity, err = getEnvAsFloatRequired("MIN_QUANTITY", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_QUANTITY: %v", err))
	} else if cfg.MinQuantity < 0 {
		errs = append(errs, "MIN_QUANTITY cannot be negative")
	}

	// Trade reporting
	cfg.ReportingEndpoint = getEnv("REPORTING_ENDPOINT", "")
	reportingTimeoutSeconds := getEnvAsInt("REPORTING_TIMEOUT_SECONDS", 10)
	if reportingTimeoutSeconds <= 0 {
		errs = append(errs, "REPORTING_TIMEOUT_SECONDS must be positive")
	}
	cfg.ReportingTimeout = time.Duration(reportingTimeoutSeconds) * time.Second

	// Trade journal
	cfg.DBPath = getEnv("DB_PATH", "./data/trade_journal.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Metrics
	cfg.MetricsAddr = getEnv("METRICS_ADDR", "")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "json"))
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		errs = append(errs, "LOG_FORMAT must be 'json' or 'text'")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
