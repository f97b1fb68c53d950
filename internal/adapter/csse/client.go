package csse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
)

var errServerStatus = errors.New("feed server error")

// Options configures a Client.
type Options struct {
	BaseURL         string
	Timeout         time.Duration
	RateLimit       float64 // requests per second
	BreakerFailures uint32  // consecutive transport faults before the breaker opens
	Logger          *slog.Logger
}

// Client reads daily reports from an HTTP directory of MM-DD-YYYY.csv files.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a feed client. Zero option values fall back to the
// service defaults.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 3
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	failures := opts.BreakerFailures
	logger := opts.Logger

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "csse-feed",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("feed breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		breaker:    cb,
		logger:     logger,
	}
}

// ReportURL returns the address of the report published for date.
func (c *Client) ReportURL(date time.Time) string {
	return fmt.Sprintf("%s/%s.csv", c.baseURL, domain.ReportName(date))
}

// Exists reports whether a report is published for date. A 404 (or any other
// client-error status) is a normal "no", not a failure.
func (c *Client) Exists(ctx context.Context, date time.Time) (bool, error) {
	resp, err := c.do(ctx, http.MethodHead, date)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// Fetch downloads the report for date. A missing report yields an error
// wrapping domain.ErrDateUnavailable.
func (c *Client) Fetch(ctx context.Context, date time.Time) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, date)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d: %w", domain.ReportName(date), resp.StatusCode, domain.ErrDateUnavailable)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", domain.ReportName(date), err)
	}
	return body, nil
}

// do paces and executes one request through the breaker. Only transport
// errors and 5xx responses count against the breaker. The failure that trips
// it, and every call while it stays open, reports domain.ErrSourceUnreachable.
func (c *Client) do(ctx context.Context, method string, date time.Time) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.ReportURL(date), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: status %d", errServerStatus, resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) ||
			c.breaker.State() == gobreaker.StateOpen {
			return nil, fmt.Errorf("%s %s: %w: %w", method, domain.ReportName(date), domain.ErrSourceUnreachable, err)
		}
		return nil, fmt.Errorf("%s %s: %w", method, domain.ReportName(date), err)
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, errors.New("unexpected result type from circuit breaker")
	}
	return resp, nil
}
