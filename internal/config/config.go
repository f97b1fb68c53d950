package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/covid-timeseries-etl/internal/adapter/csse"
	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
)

// DefaultFeedBaseURL is the directory holding the CSSE daily report files.
const DefaultFeedBaseURL = "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_daily_reports"

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Feed access.
	FeedBaseURL         string
	FeedStartDate       time.Time
	FeedTimeout         time.Duration
	FeedRateLimit       float64
	FeedBreakerFailures uint32
	FeedCacheSize       int

	// Aggregation.
	RulesFile        string
	DailyPolicyUS    domain.DailyPolicy
	DailyPolicyWorld domain.DailyPolicy
	LagDays          int
	RefreshInterval  time.Duration

	// Publishing.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first if present; variables
// already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	startDate, err := time.Parse(time.DateOnly, sharedcfg.EnvOrDefault("FEED_START_DATE", "2020-01-22"))
	if err != nil {
		return nil, errors.New("invalid FEED_START_DATE: want YYYY-MM-DD")
	}

	feedTimeout, err := parsePositiveDuration("FEED_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	refresh, err := parsePositiveDuration("REFRESH_INTERVAL", "6h")
	if err != nil {
		return nil, err
	}

	rateLimit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("FEED_RATE_LIMIT", "5"), 64)
	if err != nil || rateLimit <= 0 {
		return nil, errors.New("invalid FEED_RATE_LIMIT: must be a positive number")
	}

	failures, err := parsePositiveInt("FEED_BREAKER_FAILURES", 3)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("FEED_CACHE_SIZE", csse.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	lag, err := parsePositiveInt("LAG_DAYS", 7)
	if err != nil {
		return nil, err
	}

	policyUS, err := parsePolicy("DAILY_POLICY_US")
	if err != nil {
		return nil, err
	}
	policyWorld, err := parsePolicy("DAILY_POLICY_WORLD")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		FeedBaseURL:         sharedcfg.EnvOrDefault("FEED_BASE_URL", DefaultFeedBaseURL),
		FeedStartDate:       startDate,
		FeedTimeout:         feedTimeout,
		FeedRateLimit:       rateLimit,
		FeedBreakerFailures: uint32(failures), //nolint:gosec // bounded by parsePositiveInt
		FeedCacheSize:       cacheSize,

		RulesFile:        os.Getenv("RULES_FILE"),
		DailyPolicyUS:    policyUS,
		DailyPolicyWorld: policyWorld,
		LagDays:          lag,
		RefreshInterval:  refresh,

		KafkaEnabled:   os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "covid-timeseries"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 1<<20 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parsePolicy(key string) (domain.DailyPolicy, error) {
	p, err := domain.ParseDailyPolicy(sharedcfg.EnvOrDefault(key, "allow"))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return p, nil
}
