package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/covid-timeseries-etl/internal/adapter/csse"
	httpadapter "github.com/couchcryptid/covid-timeseries-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/covid-timeseries-etl/internal/adapter/kafka"
	"github.com/couchcryptid/covid-timeseries-etl/internal/config"
	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
	"github.com/couchcryptid/covid-timeseries-etl/internal/observability"
	"github.com/couchcryptid/covid-timeseries-etl/internal/pipeline"
	"github.com/couchcryptid/covid-timeseries-etl/internal/rules"
	"github.com/couchcryptid/covid-timeseries-etl/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	table, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return err
	}

	source := csse.NewCachedSource(csse.NewSource(csse.Options{
		BaseURL:         cfg.FeedBaseURL,
		Timeout:         cfg.FeedTimeout,
		RateLimit:       cfg.FeedRateLimit,
		BreakerFailures: cfg.FeedBreakerFailures,
		Logger:          logger,
	}), cfg.FeedCacheSize, func(kind string, hit bool) {
		result := "miss"
		if hit {
			result = "hit"
		}
		metrics.FeedCache.WithLabelValues(kind, result).Inc()
	})
	logger.Info("feed configured", "base_url", cfg.FeedBaseURL, "cache_size", cfg.FeedCacheSize)

	aggregator, err := pipeline.NewAggregator(source, table, logger, metrics)
	if err != nil {
		return err
	}

	// Kafka publishing is feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	runner := pipeline.NewRunner(aggregator, pipeline.NewResultCache(), publisher, pipeline.RunnerConfig{
		Start: cfg.FeedStartDate,
		Policies: map[domain.Universe]domain.DailyPolicy{
			domain.UniverseUS:    cfg.DailyPolicyUS,
			domain.UniverseWorld: cfg.DailyPolicyWorld,
		},
	}, logger, metrics)

	sched := scheduler.New(runner.Refresh, cfg.RefreshInterval, 0, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, runner, httpadapter.API{
		Results:    runner.Cache(),
		Refresh:    sched.RunNow,
		DefaultLag: cfg.LagDays,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		sched.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		if writer != nil {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}
		return nil
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}
