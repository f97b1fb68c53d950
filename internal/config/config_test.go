package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/covid-timeseries-etl/internal/adapter/csse"
	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultFeedBaseURL, cfg.FeedBaseURL)
	assert.Equal(t, time.Date(2020, 1, 22, 0, 0, 0, 0, time.UTC), cfg.FeedStartDate)
	assert.Equal(t, 10*time.Second, cfg.FeedTimeout)
	assert.InDelta(t, 5.0, cfg.FeedRateLimit, 0)
	assert.Equal(t, uint32(3), cfg.FeedBreakerFailures)
	assert.Equal(t, csse.DefaultCacheSize, cfg.FeedCacheSize)
	assert.Empty(t, cfg.RulesFile)
	assert.Equal(t, domain.DailyAllowNegative, cfg.DailyPolicyUS)
	assert.Equal(t, domain.DailyAllowNegative, cfg.DailyPolicyWorld)
	assert.Equal(t, 7, cfg.LagDays)
	assert.Equal(t, 6*time.Hour, cfg.RefreshInterval)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "covid-timeseries", cfg.KafkaSinkTopic)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("FEED_BASE_URL", "http://mirror.local/reports")
	t.Setenv("FEED_START_DATE", "2020-03-01")
	t.Setenv("FEED_TIMEOUT", "3s")
	t.Setenv("FEED_RATE_LIMIT", "0.5")
	t.Setenv("FEED_BREAKER_FAILURES", "7")
	t.Setenv("FEED_CACHE_SIZE", "64")
	t.Setenv("RULES_FILE", "/etc/covid/rules.yaml")
	t.Setenv("DAILY_POLICY_US", "clamp")
	t.Setenv("DAILY_POLICY_WORLD", "ALLOW")
	t.Setenv("LAG_DAYS", "5")
	t.Setenv("REFRESH_INTERVAL", "30m")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://mirror.local/reports", cfg.FeedBaseURL)
	assert.Equal(t, time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), cfg.FeedStartDate)
	assert.Equal(t, 3*time.Second, cfg.FeedTimeout)
	assert.InDelta(t, 0.5, cfg.FeedRateLimit, 0)
	assert.Equal(t, uint32(7), cfg.FeedBreakerFailures)
	assert.Equal(t, 64, cfg.FeedCacheSize)
	assert.Equal(t, "/etc/covid/rules.yaml", cfg.RulesFile)
	assert.Equal(t, domain.DailyClampNegative, cfg.DailyPolicyUS)
	assert.Equal(t, domain.DailyAllowNegative, cfg.DailyPolicyWorld)
	assert.Equal(t, 5, cfg.LagDays)
	assert.Equal(t, 30*time.Minute, cfg.RefreshInterval)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"FEED_START_DATE", "22/01/2020"},
		{"FEED_TIMEOUT", "0s"},
		{"REFRESH_INTERVAL", "soon"},
		{"FEED_RATE_LIMIT", "-2"},
		{"FEED_BREAKER_FAILURES", "zero"},
		{"FEED_CACHE_SIZE", "0"},
		{"LAG_DAYS", "-7"},
		{"DAILY_POLICY_US", "ignore"},
		{"DAILY_POLICY_WORLD", "drop"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", " , ")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}
