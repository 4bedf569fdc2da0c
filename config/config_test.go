package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copyTradeEngine/internal/adapters/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "engine:tasks", cfg.QueueName)
	assert.Equal(t, 10, cfg.MaxParallel)
	assert.Equal(t, 30*time.Second, cfg.SubscriberTimeout)
	assert.True(t, cfg.IsTestnet, "testnet must be the default")
	assert.Equal(t, 0.0004, cfg.CommissionRate)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("QUEUE_NAME", "staging:tasks")
	t.Setenv("MAX_PARALLEL_SUBSCRIBERS", "4")
	t.Setenv("COMMISSION_RATE", "0.001")
	t.Setenv("IS_TESTNET", "false")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.RedisAddr)
	assert.Equal(t, "staging:tasks", cfg.QueueName)
	assert.Equal(t, 4, cfg.MaxParallel)
	assert.Equal(t, 0.001, cfg.CommissionRate)
	assert.False(t, cfg.IsTestnet)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadConfigCollectsValidationErrors(t *testing.T) {
	t.Setenv("MAX_PARALLEL_SUBSCRIBERS", "-1")
	t.Setenv("COMMISSION_RATE", "1.5")
	t.Setenv("LOG_FORMAT", "yaml")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_PARALLEL_SUBSCRIBERS")
	assert.Contains(t, err.Error(), "COMMISSION_RATE")
	assert.Contains(t, err.Error(), "LOG_FORMAT")
}

func TestLoadConfigRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("COMMISSION_RATE", "abc")
	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid COMMISSION_RATE")
}
