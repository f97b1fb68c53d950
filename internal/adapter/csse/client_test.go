package csse_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/covid-timeseries-etl/internal/adapter/csse"
	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
	"github.com/couchcryptid/covid-timeseries-etl/internal/observability"
)

const reportBody = "Province/State,Country/Region,Last Update,Confirmed,Deaths,Recovered\n,Italy,2020-03-01T10:00:00,1694,34,83\n"

var march1 = time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)

func testClient(baseURL string) *csse.Client {
	return csse.NewClient(csse.Options{
		BaseURL:         baseURL,
		Timeout:         2 * time.Second,
		RateLimit:       1000,
		BreakerFailures: 2,
		Logger:          observability.DiscardLogger(),
	})
}

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reports/03-01-2020.csv" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write([]byte(reportBody))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_ReportURL(t *testing.T) {
	c := testClient("http://feed.local/reports/")
	assert.Equal(t, "http://feed.local/reports/03-01-2020.csv", c.ReportURL(march1))
}

func TestClient_Exists(t *testing.T) {
	srv := feedServer(t)
	c := testClient(srv.URL + "/reports")

	ok, err := c.Exists(context.Background(), march1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Exists(context.Background(), march1.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_Fetch(t *testing.T) {
	srv := feedServer(t)
	c := testClient(srv.URL + "/reports")

	body, err := c.Fetch(context.Background(), march1)
	require.NoError(t, err)
	assert.Equal(t, reportBody, string(body))

	_, err = c.Fetch(context.Background(), march1.AddDate(0, 0, 1))
	require.ErrorIs(t, err, domain.ErrDateUnavailable)
}

func TestClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	srv := feedServer(t)
	c := testClient(srv.URL + "/reports")

	for i := range 5 {
		ok, err := c.Exists(context.Background(), march1.AddDate(0, 0, i+1))
		require.NoError(t, err)
		assert.False(t, ok)
	}
	ok, err := c.Exists(context.Background(), march1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClient_ServerErrorsTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c := testClient(srv.URL)

	_, err := c.Exists(context.Background(), march1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSourceUnreachable)

	_, err = c.Exists(context.Background(), march1)
	require.ErrorIs(t, err, domain.ErrSourceUnreachable)

	_, err = c.Fetch(context.Background(), march1)
	require.ErrorIs(t, err, domain.ErrSourceUnreachable)
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the server")
}

func TestClient_UnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()
	c := testClient(base)

	var err error
	for range 2 {
		_, err = c.Exists(context.Background(), march1)
	}
	require.ErrorIs(t, err, domain.ErrSourceUnreachable)
}

func TestClient_CancelledContext(t *testing.T) {
	srv := feedServer(t)
	c := testClient(srv.URL + "/reports")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Fetch(ctx, march1)
	require.ErrorIs(t, err, context.Canceled)
}
