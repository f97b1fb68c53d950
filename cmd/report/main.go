// Command report runs one aggregation against the feed and prints the ranked
// doubling-time table for a metric. The full result can also be written as
// JSON (readable by cmd/validate) or as an xlsx workbook.
//
// Usage:
//
//	go run ./cmd/report -universe us -metric confirmed -lag 7
//	go run ./cmd/report -universe world -policy clamp -json out/world.json -xlsx out/world.xlsx
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/covid-timeseries-etl/internal/adapter/csse"
	"github.com/couchcryptid/covid-timeseries-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/covid-timeseries-etl/internal/config"
	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
	"github.com/couchcryptid/covid-timeseries-etl/internal/observability"
	"github.com/couchcryptid/covid-timeseries-etl/internal/pipeline"
	"github.com/couchcryptid/covid-timeseries-etl/internal/rules"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		slog.Error("report failed", "error", err)
		os.Exit(1)
	}
}

// options are the parsed command-line flags.
type options struct {
	feed     string
	rules    string
	universe domain.Universe
	metric   domain.Metric
	policy   domain.DailyPolicy
	start    time.Time
	end      time.Time
	lag      int
	top      int
	jsonOut  string
	xlsxOut  string
}

func parseFlags(args []string, cfg *config.Config, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)

	feed := fs.String("feed", cfg.FeedBaseURL, "feed base URL (http(s):// or file://)")
	rulesPath := fs.String("rules", cfg.RulesFile, "rules table path; empty uses the embedded table")
	universe := fs.String("universe", string(domain.UniverseUS), "universe to aggregate: us or world")
	metric := fs.String("metric", string(domain.MetricConfirmed), "metric to rank and measure")
	policy := fs.String("policy", cfg.DailyPolicyUS.String(), "negative daily delta policy: allow or clamp")
	start := fs.String("start", cfg.FeedStartDate.Format(time.DateOnly), "first report date (YYYY-MM-DD)")
	end := fs.String("end", "", "last report date (YYYY-MM-DD); empty means today")
	lag := fs.Int("lag", cfg.LagDays, "doubling time lag in days")
	top := fs.Int("top", 20, "rows to print; 0 prints every entity")
	jsonOut := fs.String("json", "", "write the full result as JSON to this path")
	xlsxOut := fs.String("xlsx", "", "write the result workbook to this path")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	var (
		opts = options{feed: *feed, rules: *rulesPath, lag: *lag, top: *top, jsonOut: *jsonOut, xlsxOut: *xlsxOut}
		err  error
	)
	if opts.universe, err = domain.ParseUniverse(*universe); err != nil {
		return options{}, err
	}
	if opts.metric, err = domain.ParseMetric(*metric); err != nil {
		return options{}, err
	}
	if opts.policy, err = domain.ParseDailyPolicy(*policy); err != nil {
		return options{}, err
	}
	if opts.start, err = time.Parse(time.DateOnly, *start); err != nil {
		return options{}, fmt.Errorf("invalid -start: %w", err)
	}
	if *end != "" {
		if opts.end, err = time.Parse(time.DateOnly, *end); err != nil {
			return options{}, fmt.Errorf("invalid -end: %w", err)
		}
	}
	if opts.lag <= 0 {
		return options{}, fmt.Errorf("invalid -lag: must be positive, got %d", opts.lag)
	}
	if opts.top < 0 {
		return options{}, fmt.Errorf("invalid -top: must not be negative, got %d", opts.top)
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	opts, err := parseFlags(args, cfg, os.Stderr)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetricsForTesting()

	table, err := rules.Load(opts.rules)
	if err != nil {
		return err
	}
	source := csse.NewCachedSource(csse.NewSource(csse.Options{
		BaseURL:         opts.feed,
		Timeout:         cfg.FeedTimeout,
		RateLimit:       cfg.FeedRateLimit,
		BreakerFailures: cfg.FeedBreakerFailures,
		Logger:          logger,
	}), cfg.FeedCacheSize, nil)

	agg, err := pipeline.NewAggregator(source, table, logger, metrics)
	if err != nil {
		return err
	}
	result, err := agg.Aggregate(ctx, pipeline.Options{
		Universe: opts.universe,
		Daily:    opts.policy,
		Start:    opts.start,
		End:      opts.end,
	})
	if err != nil {
		return err
	}

	if err := printTable(stdout, result, opts); err != nil {
		return err
	}
	if opts.jsonOut != "" {
		if err := writeFile(opts.jsonOut, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}); err != nil {
			return fmt.Errorf("write json: %w", err)
		}
	}
	if opts.xlsxOut != "" {
		if err := writeFile(opts.xlsxOut, func(w io.Writer) error {
			return xlsx.Write(w, result, opts.lag)
		}); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
	}
	return nil
}

func printTable(w io.Writer, result *domain.Result, opts options) error {
	rows, err := pipeline.Summarize(result, opts.metric, opts.lag)
	if err != nil {
		return err
	}
	if opts.top > 0 && len(rows) > opts.top {
		rows = rows[:opts.top]
	}

	first, last := result.Dates[0], result.Dates[len(result.Dates)-1]
	fmt.Fprintf(w, "%s %s, %s to %s (%d dates, %d entities, %d issues, daily=%s)\n\n",
		result.Universe, opts.metric, first.Format(time.DateOnly), last.Format(time.DateOnly),
		len(result.Dates), len(result.Cases), len(result.Issues), result.Daily)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "RANK\tENTITY\tLATEST\tDAILY\tDOUBLING (%dd)\t\n", opts.lag)
	for i, r := range rows {
		entity := r.Entity
		if r.Repatriated {
			entity += " *"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t\n", i+1, entity,
			formatFloat(float64(r.Latest), 0), formatFloat(float64(r.Daily), 0), formatFloat(r.Doubling, 1))
	}
	total := result.Total(opts.metric, false)
	fmt.Fprintf(tw, "\ttotal\t%s\t\t\t\n", formatFloat(total.Last(), 0))
	return tw.Flush()
}

func formatFloat(v float64, prec int) string {
	switch {
	case math.IsNaN(v):
		return "-"
	case math.IsInf(v, 0):
		return "inf"
	default:
		return strconv.FormatFloat(v, 'f', prec, 64)
	}
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
