package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
	"github.com/couchcryptid/covid-timeseries-etl/internal/observability"
)

// DateChecker answers whether a report is published for a date.
type DateChecker interface {
	Exists(ctx context.Context, date time.Time) (bool, error)
}

// Prober walks a date range and keeps the dates whose report exists.
type Prober struct {
	checker DateChecker
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewProber creates a Prober.
func NewProber(checker DateChecker, logger *slog.Logger, metrics *observability.Metrics) *Prober {
	return &Prober{checker: checker, logger: logger, metrics: metrics}
}

// ProbeDates is Prober.Dates with the default logger and unregistered metrics.
func ProbeDates(ctx context.Context, checker DateChecker, start, end time.Time) ([]time.Time, error) {
	dates, _, err := NewProber(checker, slog.Default(), observability.NewMetricsForTesting()).Dates(ctx, start, end)
	return dates, err
}

// Dates checks every calendar day from start through end inclusive, once
// each and without retries. Unpublished dates are skipped quietly; dates
// whose check failed are skipped and reported as issues. Only
// domain.ErrSourceUnreachable or cancellation stops the walk.
func (p *Prober) Dates(ctx context.Context, start, end time.Time) ([]time.Time, []domain.Issue, error) {
	start, end = domain.Day(start), domain.Day(end)
	if end.Before(start) {
		return nil, nil, nil
	}

	var (
		dates  []time.Time
		issues []domain.Issue
	)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		ok, err := p.checker.Exists(ctx, d)
		switch {
		case err == nil && ok:
			p.metrics.DatesProbed.WithLabelValues("available").Inc()
			dates = append(dates, d)
		case err == nil:
			p.metrics.DatesProbed.WithLabelValues("unavailable").Inc()
			p.logger.Debug("report not published", "date", domain.ReportName(d))
		case errors.Is(err, domain.ErrSourceUnreachable), ctx.Err() != nil:
			p.metrics.DatesProbed.WithLabelValues("error").Inc()
			return nil, nil, fmt.Errorf("probe %s: %w", domain.ReportName(d), err)
		default:
			p.metrics.DatesProbed.WithLabelValues("error").Inc()
			p.logger.Warn("probe failed, skipping date", "date", domain.ReportName(d), "error", err)
			issues = append(issues, domain.Issue{Date: d, Reason: "probe failed: " + err.Error()})
		}
	}
	return dates, issues, nil
}
