package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
	"github.com/couchcryptid/covid-timeseries-etl/internal/observability"
	"github.com/couchcryptid/covid-timeseries-etl/internal/reference"
	"github.com/couchcryptid/covid-timeseries-etl/internal/rules"
	"github.com/couchcryptid/covid-timeseries-etl/internal/snapshot"
)

// FeedStart is the first date the feed published a daily report.
var FeedStart = time.Date(2020, time.January, 22, 0, 0, 0, 0, time.UTC)

// perCapita scales normalized counts to cases per 100,000 residents.
const perCapita = 100000

// SnapshotSource probes and downloads daily reports.
type SnapshotSource interface {
	DateChecker
	Fetch(ctx context.Context, date time.Time) ([]byte, error)
}

// Options selects what one aggregation produces.
type Options struct {
	Universe domain.Universe
	Daily    domain.DailyPolicy
	// Start defaults to FeedStart, End to today.
	Start time.Time
	End   time.Time
}

// universeTable is the compiled per-universe state the aggregator needs.
type universeTable struct {
	rules    rules.Set
	resolver *domain.Resolver
	vessels  map[string]bool
}

// Aggregator turns the feed into date-aligned per-entity series. It holds no
// state between calls; every Aggregate builds an independent Result.
type Aggregator struct {
	source      SnapshotSource
	prober      *Prober
	tables      map[domain.Universe]universeTable
	populations map[string]int64
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewAggregator compiles the rules table for both universes.
func NewAggregator(source SnapshotSource, table *rules.File, logger *slog.Logger, metrics *observability.Metrics) (*Aggregator, error) {
	populations, err := reference.Populations()
	if err != nil {
		return nil, fmt.Errorf("load populations: %w", err)
	}

	a := &Aggregator{
		source:      source,
		prober:      NewProber(source, logger, metrics),
		tables:      make(map[domain.Universe]universeTable, 2),
		populations: populations,
		logger:      logger,
		metrics:     metrics,
	}

	for _, u := range []domain.Universe{domain.UniverseUS, domain.UniverseWorld} {
		set, err := table.Compile(u)
		if err != nil {
			return nil, err
		}
		var regions map[string]string
		if u == domain.UniverseUS {
			regions = reference.StateAbbreviations()
		}
		vessels := make(map[string]bool, len(set.Resolver.Vessels))
		for _, v := range set.Resolver.Vessels {
			vessels[v.Key] = true
		}
		a.tables[u] = universeTable{
			rules:    set,
			resolver: domain.NewResolver(set.Resolver, regions),
			vessels:  vessels,
		}
	}
	return a, nil
}

// snapshotDay is one fetched and parsed report.
type snapshotDay struct {
	date    time.Time
	records []domain.RawRecord
}

// Aggregate probes the date range, fetches and parses each available report
// in order, and accumulates the universe's entities onto the resulting axis.
// Partial failures become Issues on the result; only an unreachable source,
// cancellation, or an empty axis fails the call.
func (a *Aggregator) Aggregate(ctx context.Context, opts Options) (*domain.Result, error) {
	if opts.Daily != domain.DailyAllowNegative && opts.Daily != domain.DailyClampNegative {
		return nil, domain.ErrDailyPolicyRequired
	}
	table, ok := a.tables[opts.Universe]
	if !ok {
		return nil, fmt.Errorf("aggregate: unknown universe %q", opts.Universe)
	}
	if opts.Start.IsZero() {
		opts.Start = FeedStart
	}
	if opts.End.IsZero() {
		opts.End = domain.Today()
	}

	start := time.Now()
	result, err := a.aggregate(ctx, opts, table)
	if err != nil {
		a.metrics.AggregationErrors.WithLabelValues(string(opts.Universe)).Inc()
		return nil, err
	}
	a.metrics.AggregationDuration.WithLabelValues(string(opts.Universe)).Observe(time.Since(start).Seconds())
	a.logger.Info("aggregation complete",
		"universe", opts.Universe,
		"run_id", result.RunID,
		"dates", len(result.Dates),
		"entities", len(result.Cases),
		"issues", len(result.Issues),
	)
	return result, nil
}

func (a *Aggregator) aggregate(ctx context.Context, opts Options, table universeTable) (*domain.Result, error) {
	probed, issues, err := a.prober.Dates(ctx, opts.Start, opts.End)
	if err != nil {
		return nil, err
	}

	days, fetchIssues, err := a.fetchAll(ctx, probed)
	if err != nil {
		return nil, err
	}
	issues = append(issues, fetchIssues...)
	if len(days) == 0 {
		return nil, fmt.Errorf("aggregate %s from %s to %s: %w",
			opts.Universe, domain.ReportName(opts.Start), domain.ReportName(opts.End), domain.ErrEmptyAxis)
	}

	acc := newAccumulator(opts.Universe, table, len(days), a.logger)
	for i, day := range days {
		acc.addDay(i, day)
	}
	issues = append(issues, acc.issues...)
	for reason, n := range acc.dropped {
		a.metrics.RecordsDropped.WithLabelValues(string(reason)).Add(float64(n))
	}
	a.metrics.CorrectionsApplied.Add(float64(acc.corrected))

	dates := make([]time.Time, len(days))
	for i, day := range days {
		dates[i] = day.date
	}

	normalize := opts.Universe == domain.UniverseUS
	for key, e := range acc.entities {
		deriveActive(e)
		deriveDaily(e, dates, opts.Daily, table.rules.DailyExceptions)
		if !normalize {
			continue
		}
		if err := deriveNormalized(e, a.populations); err != nil {
			a.logger.Error("normalized series unavailable", "entity", key, "error", err)
			issues = append(issues, domain.Issue{Date: dates[len(dates)-1], Location: key, Reason: err.Error()})
		}
	}

	return &domain.Result{
		RunID:       uuid.NewString(),
		Universe:    opts.Universe,
		Daily:       opts.Daily.String(),
		Dates:       dates,
		Cases:       acc.entities,
		Issues:      issues,
		GeneratedAt: domain.Now().UTC(),
	}, nil
}

// fetchAll downloads and parses each probed date in order. A date whose
// download fails or whose schema is unknown is left off the axis.
func (a *Aggregator) fetchAll(ctx context.Context, dates []time.Time) ([]snapshotDay, []domain.Issue, error) {
	days := make([]snapshotDay, 0, len(dates))
	var issues []domain.Issue

	for _, d := range dates {
		name := domain.ReportName(d)
		body, err := a.source.Fetch(ctx, d)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, domain.ErrSourceUnreachable) {
				a.metrics.SnapshotsFetched.WithLabelValues("error").Inc()
				return nil, nil, fmt.Errorf("fetch %s: %w", name, err)
			}
			a.metrics.SnapshotsFetched.WithLabelValues("error").Inc()
			a.logger.Warn("fetch failed, skipping date", "date", name, "error", err)
			issues = append(issues, domain.Issue{Date: d, Reason: "fetch failed: " + err.Error()})
			continue
		}
		a.metrics.SnapshotsFetched.WithLabelValues("success").Inc()

		parsed, err := snapshot.Parse(bytes.NewReader(body))
		if err != nil {
			a.logger.Warn("unparseable report, skipping date", "date", name, "error", err)
			issues = append(issues, domain.Issue{Date: d, Reason: err.Error()})
			continue
		}

		a.metrics.RecordsParsed.Add(float64(len(parsed.Records)))
		a.metrics.RecordsRejected.Add(float64(len(parsed.Rejects)))
		for _, rej := range parsed.Rejects {
			a.logger.Warn("rejected row", "date", name, "line", rej.Line, "column", rej.Column, "value", rej.Value)
			issues = append(issues, domain.Issue{Date: d, Reason: rej.Error()})
		}
		days = append(days, snapshotDay{date: d, records: parsed.Records})
	}
	return days, issues, nil
}
