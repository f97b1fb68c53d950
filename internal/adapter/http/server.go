package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/covid-timeseries-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
	"github.com/couchcryptid/covid-timeseries-etl/internal/pipeline"
)

// ResultStore serves the latest aggregation per universe.
type ResultStore interface {
	Get(u domain.Universe) (*domain.Result, bool)
}

// API wires the data routes. Refresh may be nil to leave POST /refresh unrouted.
type API struct {
	Results    ResultStore
	Refresh    func() error
	DefaultLag int
}

// Server exposes health, readiness, metrics, and series HTTP endpoints.
type Server struct {
	httpServer *http.Server
	api        API
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the series routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, api API, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	if api.DefaultLag <= 0 {
		api.DefaultLag = 7
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		api:    api,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /series/{universe}", s.handleSeries)
	mux.HandleFunc("GET /series/{universe}/{entity}", s.handleEntity)
	mux.HandleFunc("GET /doubling/{universe}", s.handleDoubling)
	mux.HandleFunc("GET /export/{file}", s.handleExport)
	if api.Refresh != nil {
		mux.HandleFunc("POST /refresh", s.handleRefresh)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type entityResponse struct {
	Universe domain.Universe      `json:"universe"`
	RunID    string               `json:"run_id"`
	Dates    []time.Time          `json:"dates"`
	Series   *domain.EntitySeries `json:"series"`
}

type doublingResponse struct {
	Universe domain.Universe    `json:"universe"`
	RunID    string             `json:"run_id"`
	Metric   domain.Metric      `json:"metric"`
	Lag      int                `json:"lag"`
	Dates    []time.Time        `json:"dates"`
	Summary  []pipeline.Summary `json:"summary"`
	Trend    []pipeline.Trend   `json:"trend"`
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	result, ok := s.lookup(w, r.PathValue("universe"))
	if !ok {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	result, ok := s.lookup(w, r.PathValue("universe"))
	if !ok {
		return
	}
	key := strings.ToLower(strings.TrimSpace(r.PathValue("entity")))
	e, ok := result.Entity(key)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown entity %q", key))
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, entityResponse{
		Universe: result.Universe,
		RunID:    result.RunID,
		Dates:    result.Dates,
		Series:   e,
	})
}

func (s *Server) handleDoubling(w http.ResponseWriter, r *http.Request) {
	result, ok := s.lookup(w, r.PathValue("universe"))
	if !ok {
		return
	}
	metric, lag, err := s.analysisParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	summary, err := pipeline.Summarize(result, metric, lag)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, doublingResponse{
		Universe: result.Universe,
		RunID:    result.RunID,
		Metric:   metric,
		Lag:      lag,
		Dates:    result.Dates,
		Summary:  summary,
		Trend:    pipeline.RollingTrend(result, metric, lag, domain.DefaultRollingThreshold),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("file"), ".xlsx")
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("only .xlsx exports are available"))
		return
	}
	result, ok := s.lookup(w, name)
	if !ok {
		return
	}
	_, lag, err := s.analysisParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="covid-%s-%s.xlsx"`, result.Universe, result.GeneratedAt.Format("20060102")))
	if err := xlsx.Write(w, result, lag); err != nil {
		s.logger.Error("xlsx export failed", "universe", result.Universe, "error", err)
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if err := s.api.Refresh(); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}

// lookup resolves a universe path value to its cached result, writing the
// error response itself when there is none.
func (s *Server) lookup(w http.ResponseWriter, raw string) (*domain.Result, bool) {
	u, err := domain.ParseUniverse(raw)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	result, ok := s.api.Results.Get(u)
	if !ok {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("no %s aggregation available yet", u))
		return nil, false
	}
	return result, true
}

func (s *Server) analysisParams(r *http.Request) (domain.Metric, int, error) {
	metric := domain.MetricConfirmed
	if v := r.URL.Query().Get("metric"); v != "" {
		m, err := domain.ParseMetric(v)
		if err != nil {
			return "", 0, err
		}
		metric = m
	}
	lag := s.api.DefaultLag
	if v := r.URL.Query().Get("lag"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return "", 0, fmt.Errorf("invalid lag %q: must be a positive integer", v)
		}
		lag = n
	}
	return metric, lag, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
