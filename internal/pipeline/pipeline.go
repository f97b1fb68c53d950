package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
	"github.com/couchcryptid/covid-timeseries-etl/internal/observability"
)

// SeriesAggregator produces one aggregation result.
type SeriesAggregator interface {
	Aggregate(ctx context.Context, opts Options) (*domain.Result, error)
}

// Publisher sends a finished result downstream.
type Publisher interface {
	Publish(ctx context.Context, result *domain.Result) error
}

// ResultCache is the caller-held store of the latest result per universe.
// Nothing is evicted implicitly; callers replace or Invalidate entries.
type ResultCache struct {
	mu      sync.RWMutex
	results map[domain.Universe]*domain.Result
}

// NewResultCache creates an empty cache.
func NewResultCache() *ResultCache {
	return &ResultCache{results: make(map[domain.Universe]*domain.Result)}
}

// Get returns the cached result for u.
func (c *ResultCache) Get(u domain.Universe) (*domain.Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[u]
	return r, ok
}

// Put stores r under its universe, replacing any previous result.
func (c *ResultCache) Put(r *domain.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[r.Universe] = r
}

// Invalidate drops the given universes, or every universe when none are named.
func (c *ResultCache) Invalidate(universes ...domain.Universe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(universes) == 0 {
		clear(c.results)
		return
	}
	for _, u := range universes {
		delete(c.results, u)
	}
}

// RunnerConfig holds the per-refresh aggregation parameters.
type RunnerConfig struct {
	Start    time.Time
	Policies map[domain.Universe]domain.DailyPolicy
}

// Runner performs refreshes: aggregate each configured universe, store the
// result in the cache, and publish it.
type Runner struct {
	aggregator SeriesAggregator
	cache      *ResultCache
	publisher  Publisher
	cfg        RunnerConfig
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
	mu         sync.Mutex // serializes refreshes
}

// Publish retry: start at 200ms, double each attempt, cap at 5s.
const (
	initialBackoff     = 200 * time.Millisecond
	maxBackoff         = 5 * time.Second
	maxPublishAttempts = 5
)

// NewRunner creates a Runner. publisher may be nil.
func NewRunner(agg SeriesAggregator, cache *ResultCache, publisher Publisher, cfg RunnerConfig, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		aggregator: agg,
		cache:      cache,
		publisher:  publisher,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
	}
}

// Cache returns the runner's result cache.
func (r *Runner) Cache() *ResultCache { return r.cache }

// CheckReadiness returns nil once a refresh has stored at least one result.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no aggregation has completed yet")
	}
	return nil
}

// Refresh re-aggregates every configured universe in a fixed order (US,
// then world). A universe that fails keeps its previous cached result. The
// returned error joins every failure of the run.
func (r *Runner) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.metrics.PipelineRunning.Set(1)
	defer r.metrics.PipelineRunning.Set(0)

	var errs []error
	for _, u := range []domain.Universe{domain.UniverseUS, domain.UniverseWorld} {
		policy, ok := r.cfg.Policies[u]
		if !ok {
			continue
		}
		result, err := r.aggregator.Aggregate(ctx, Options{Universe: u, Daily: policy, Start: r.cfg.Start})
		if err != nil {
			r.logger.Error("aggregation failed", "universe", u, "error", err)
			errs = append(errs, fmt.Errorf("aggregate %s: %w", u, err))
			if ctx.Err() != nil || errors.Is(err, domain.ErrSourceUnreachable) {
				break
			}
			continue
		}

		r.cache.Put(result)
		r.ready.Store(true)

		if err := r.publish(ctx, result); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", u, err))
		}
	}

	if len(errs) == 0 {
		r.metrics.LastRefresh.Set(float64(domain.Now().Unix()))
	}
	return errors.Join(errs...)
}

// publish retries with capped exponential backoff until the publisher
// accepts the result, the attempts run out, or ctx ends.
func (r *Runner) publish(ctx context.Context, result *domain.Result) error {
	if r.publisher == nil {
		return nil
	}

	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxPublishAttempts; attempt++ {
		if err = r.publisher.Publish(ctx, result); err == nil {
			r.metrics.MessagesProduced.Add(float64(len(result.Cases)))
			return nil
		}
		r.metrics.PublishErrors.Inc()
		r.logger.Warn("publish failed", "universe", result.Universe, "attempt", attempt, "error", err)

		if attempt == maxPublishAttempts || !retry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return err
}
