package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "covid_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ingestion pipeline.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	LastRefresh     prometheus.Gauge

	// Feed metrics.
	DatesProbed      *prometheus.CounterVec // labels: outcome={available,unavailable,error}
	SnapshotsFetched *prometheus.CounterVec // labels: outcome={success,error}
	FeedCache        *prometheus.CounterVec // labels: kind={probe,fetch}, result={hit,miss}

	// Aggregation metrics.
	RecordsParsed       prometheus.Counter
	RecordsRejected     prometheus.Counter
	RecordsDropped      *prometheus.CounterVec // labels: reason
	CorrectionsApplied  prometheus.Counter
	AggregationDuration *prometheus.HistogramVec // labels: universe
	AggregationErrors   *prometheus.CounterVec   // labels: universe

	// Publish metrics.
	MessagesProduced prometheus.Counter
	PublishErrors    prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a refresh is in progress, 0 otherwise.",
		}),
		LastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
		DatesProbed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dates_probed_total",
			Help:      "Report dates probed by outcome.",
		}, []string{"outcome"}),
		SnapshotsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_fetched_total",
			Help:      "Daily report downloads by outcome.",
		}, []string{"outcome"}),
		FeedCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_cache_total",
			Help:      "Feed cache lookups by kind and result.",
		}, []string{"kind", "result"}),
		RecordsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_parsed_total",
			Help:      "Report rows parsed.",
		}),
		RecordsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      "Report rows rejected for malformed numeric cells.",
		}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Parsed rows not attributed to any entity, by reason.",
		}, []string{"reason"}),
		CorrectionsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corrections_applied_total",
			Help:      "Point corrections applied to (date, entity) cells.",
		}),
		AggregationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of a complete probe-fetch-aggregate run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"universe"}),
		AggregationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_errors_total",
			Help:      "Aggregation runs aborted by a fatal error.",
		}, []string{"universe"}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Entity series messages written to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed publish attempts.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PipelineRunning,
		m.LastRefresh,
		m.DatesProbed,
		m.SnapshotsFetched,
		m.FeedCache,
		m.RecordsParsed,
		m.RecordsRejected,
		m.RecordsDropped,
		m.CorrectionsApplied,
		m.AggregationDuration,
		m.AggregationErrors,
		m.MessagesProduced,
		m.PublishErrors,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
