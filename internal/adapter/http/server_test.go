package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	httpadapter "github.com/couchcryptid/covid-timeseries-etl/internal/adapter/http"
	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
	"github.com/couchcryptid/covid-timeseries-etl/internal/observability"
	"github.com/couchcryptid/covid-timeseries-etl/internal/pipeline"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func testResult() *domain.Result {
	tl := domain.NewEntitySeries("testland", 5, false)
	tl.Confirmed = domain.Series{10, 10, 15, 40, 40}
	tl.Active = domain.Series{10, 10, 15, 40, 40}
	tl.Daily = domain.Series{domain.NoValue, 0, 5, 25, 0}
	dates := make([]time.Time, 5)
	for i := range dates {
		dates[i] = time.Date(2020, 3, 10+i, 0, 0, 0, 0, time.UTC)
	}
	return &domain.Result{
		RunID:       "run-1",
		Universe:    domain.UniverseWorld,
		Daily:       "allow",
		Dates:       dates,
		Cases:       map[string]*domain.EntitySeries{"testland": tl},
		GeneratedAt: time.Date(2020, 3, 15, 9, 0, 0, 0, time.UTC),
	}
}

func newTestServer(readyErr error, refresh func() error) *httpadapter.Server {
	cache := pipeline.NewResultCache()
	cache.Put(testResult())
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, httpadapter.API{
		Results:    cache,
		Refresh:    refresh,
		DefaultLag: 2,
	}, observability.DiscardLogger())
}

func do(t *testing.T, srv http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthzReturns200(t *testing.T) {
	rec := do(t, newTestServer(nil, nil), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := do(t, newTestServer(nil, nil), http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode(t, rec)["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := do(t, newTestServer(fmt.Errorf("not ready yet"), nil), http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestServer(nil, nil), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSeries(t *testing.T) {
	srv := newTestServer(nil, nil)

	rec := do(t, srv, http.MethodGet, "/series/world")
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Len(t, got.Dates, 5)
	assert.True(t, domain.IsNoValue(got.Cases["testland"].Daily[0]))

	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodGet, "/series/us").Code, "not aggregated yet")
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/series/mars").Code)
}

func TestSeriesEntity(t *testing.T) {
	srv := newTestServer(nil, nil)

	rec := do(t, srv, http.MethodGet, "/series/world/Testland")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	series := body["series"].(map[string]any)
	assert.Equal(t, "testland", series["key"])
	assert.Equal(t, []any{nil, 0.0, 5.0, 25.0, 0.0}, series["daily"])

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/series/world/atlantis").Code)
}

func TestDoubling(t *testing.T) {
	srv := newTestServer(nil, nil)

	rec := do(t, srv, http.MethodGet, "/doubling/world?metric=confirmed")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.InDelta(t, 2.0, body["lag"], 0, "server default lag")
	summary := body["summary"].([]any)
	require.Len(t, summary, 1)
	row := summary[0].(map[string]any)
	assert.Equal(t, "testland", row["entity"])
	assert.InDelta(t, 1.0, row["doubling_days"], 1e-9)

	rec = do(t, srv, http.MethodGet, "/doubling/world?lag=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 1.0, decode(t, rec)["lag"], 0)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/doubling/world?lag=-3").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/doubling/world?metric=vibes").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/doubling/world?metric=confirmed_normalized").Code)
}

func TestExport(t *testing.T) {
	srv := newTestServer(nil, nil)

	rec := do(t, srv, http.MethodGet, "/export/world.xlsx?lag=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "covid-world-20200315.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "confirmed")

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/export/world.csv").Code)
}

func TestRefresh(t *testing.T) {
	var calls int
	srv := newTestServer(nil, func() error { calls++; return nil })
	rec := do(t, srv, http.MethodPost, "/refresh")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, calls)

	failing := newTestServer(nil, func() error { return errors.New("scheduler stopped") })
	assert.Equal(t, http.StatusServiceUnavailable, do(t, failing, http.MethodPost, "/refresh").Code)

	noRefresh := newTestServer(nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, noRefresh, http.MethodPost, "/series/world").Code)
	assert.Equal(t, http.StatusNotFound, do(t, noRefresh, http.MethodPost, "/refresh").Code)
}
