package pipeline

import (
	"fmt"

	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
)

// Summary is one entity's headline figures for a metric.
type Summary struct {
	Entity      string       `json:"entity"`
	Repatriated bool         `json:"repatriated,omitempty"`
	Latest      domain.Value `json:"latest"`
	Daily       domain.Value `json:"daily"`
	Doubling    float64      `json:"doubling_days"`
	Inverse     float64      `json:"inverse_doubling"`
}

// Summarize ranks the result's entities by the latest value of metric and
// attaches the latest daily delta and the doubling time over lag days.
func Summarize(result *domain.Result, metric domain.Metric, lag int) ([]Summary, error) {
	if lag <= 0 {
		return nil, fmt.Errorf("summarize: lag must be positive, got %d", lag)
	}

	keys := result.Rank(metric)
	out := make([]Summary, 0, len(keys))
	for _, key := range keys {
		e, _ := result.Entity(key)
		s, ok := e.Metric(metric)
		if !ok {
			return nil, fmt.Errorf("summarize: entity %s has no %s series", key, metric)
		}
		doubling, inverse := domain.LatestDoublingTime(s, lag)
		out = append(out, Summary{
			Entity:      key,
			Repatriated: e.Repatriated,
			Latest:      domain.Value(s.Last()),
			Daily:       domain.Value(e.Daily.Last()),
			Doubling:    doubling,
			Inverse:     inverse,
		})
	}
	return out, nil
}

// Trend is the rolling inverse doubling time of one entity, keyed by axis index.
type Trend struct {
	Entity string          `json:"entity"`
	Points map[int]float64 `json:"points"`
}

// RollingTrend collects the rolling inverse doubling time of every entity
// whose metric crosses threshold.
func RollingTrend(result *domain.Result, metric domain.Metric, lag int, threshold float64) []Trend {
	var out []Trend
	for _, key := range result.Keys() {
		s, ok := result.Metric(key, metric)
		if !ok {
			continue
		}
		points := make(map[int]float64)
		for i, inv := range domain.RollingDoublingTime(s, lag, threshold) {
			points[i] = inv
		}
		if len(points) > 0 {
			out = append(out, Trend{Entity: key, Points: points})
		}
	}
	return out
}
