package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// NoValue marks a cell without a defined value, such as the first daily delta.
var NoValue = math.NaN()

// IsNoValue reports whether v is the NoValue sentinel.
func IsNoValue(v float64) bool { return math.IsNaN(v) }

// Metric names a per-entity series.
type Metric string

const (
	MetricConfirmed           Metric = "confirmed"
	MetricDeaths              Metric = "deaths"
	MetricRecovered           Metric = "recovered"
	MetricActive              Metric = "active"
	MetricDaily               Metric = "daily"
	MetricConfirmedNormalized Metric = "confirmed_normalized"
)

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case MetricConfirmed, MetricDeaths, MetricRecovered, MetricActive, MetricDaily, MetricConfirmedNormalized:
		return m, nil
	default:
		return "", fmt.Errorf("unknown metric %q", s)
	}
}

// Value is a single figure that encodes NoValue as JSON null.
type Value float64

// MarshalJSON writes NoValue (and infinities) as null.
func (v Value) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'f', -1, 64), nil
}

// UnmarshalJSON reads null back as NoValue.
func (v *Value) UnmarshalJSON(data []byte) error {
	var f *float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if f == nil {
		*v = Value(NoValue)
		return nil
	}
	*v = Value(*f)
	return nil
}

// Series is one value per date index. NoValue cells encode as JSON null.
type Series []float64

// MarshalJSON writes NoValue (and infinities) as null.
func (s Series) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	buf := make([]byte, 0, 2+len(s)*6)
	buf = append(buf, '[')
	for i, v := range s {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf = append(buf, "null"...)
			continue
		}
		buf = strconv.AppendFloat(buf, v, 'f', -1, 64)
	}
	return append(buf, ']'), nil
}

// UnmarshalJSON reads null cells back as NoValue.
func (s *Series) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = nil
		return nil
	}
	out := make(Series, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = NoValue
			continue
		}
		out[i] = *v
	}
	*s = out
	return nil
}

// Last returns the final cell, or NoValue for an empty series.
func (s Series) Last() float64 {
	if len(s) == 0 {
		return NoValue
	}
	return s[len(s)-1]
}

// Max returns the largest defined value, or NoValue when there is none.
func (s Series) Max() float64 {
	out := NoValue
	for _, v := range s {
		if IsNoValue(v) {
			continue
		}
		if IsNoValue(out) || v > out {
			out = v
		}
	}
	return out
}

func filled(n int, v float64) Series {
	s := make(Series, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// EntitySeries holds every metric of one entity as parallel arrays aligned to
// the result's date axis.
type EntitySeries struct {
	Key         string `json:"key"`
	Repatriated bool   `json:"repatriated,omitempty"`

	Confirmed Series `json:"confirmed"`
	Deaths    Series `json:"deaths"`
	Recovered Series `json:"recovered"`
	Active    Series `json:"active"`
	Daily     Series `json:"daily"`

	// ConfirmedNormalized is cases per 100,000 residents. US universe only.
	ConfirmedNormalized Series `json:"confirmed_normalized,omitempty"`
}

// NewEntitySeries allocates zero-filled series of length n. Daily starts as
// NoValue everywhere until derived.
func NewEntitySeries(key string, n int, normalized bool) *EntitySeries {
	e := &EntitySeries{
		Key:       key,
		Confirmed: make(Series, n),
		Deaths:    make(Series, n),
		Recovered: make(Series, n),
		Active:    make(Series, n),
		Daily:     filled(n, NoValue),
	}
	if normalized {
		e.ConfirmedNormalized = make(Series, n)
	}
	return e
}

// Metric returns the named series. ok is false for a metric the entity does
// not carry (normalized counts outside the US universe).
func (e *EntitySeries) Metric(m Metric) (Series, bool) {
	var s Series
	switch m {
	case MetricConfirmed:
		s = e.Confirmed
	case MetricDeaths:
		s = e.Deaths
	case MetricRecovered:
		s = e.Recovered
	case MetricActive:
		s = e.Active
	case MetricDaily:
		s = e.Daily
	case MetricConfirmedNormalized:
		s = e.ConfirmedNormalized
	}
	return s, s != nil
}

// Metrics lists the metrics this entity carries.
func (e *EntitySeries) Metrics() []Metric {
	out := []Metric{MetricConfirmed, MetricDeaths, MetricRecovered, MetricActive, MetricDaily}
	if e.ConfirmedNormalized != nil {
		out = append(out, MetricConfirmedNormalized)
	}
	return out
}

// Issue records a partial failure that was recovered locally: a skipped
// date, a rejected row, or an entity dropped by resolution.
type Issue struct {
	Date     time.Time `json:"date"`
	Location string    `json:"location,omitempty"`
	Reason   string    `json:"reason"`
}

// Result is the output of one aggregation. Consumers must treat it as
// read-only; a fresh aggregation produces an independent Result.
type Result struct {
	RunID       string                   `json:"run_id"`
	Universe    Universe                 `json:"universe"`
	Daily       string                   `json:"daily_policy"`
	Dates       []time.Time              `json:"dates"`
	Cases       map[string]*EntitySeries `json:"cases"`
	Issues      []Issue                  `json:"issues,omitempty"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// Keys returns entity keys in lexical order.
func (r *Result) Keys() []string {
	keys := make([]string, 0, len(r.Cases))
	for k := range r.Cases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entity looks up one entity's series.
func (r *Result) Entity(key string) (*EntitySeries, bool) {
	e, ok := r.Cases[key]
	return e, ok
}

// Metric looks up one metric series of one entity.
func (r *Result) Metric(key string, m Metric) (Series, bool) {
	e, ok := r.Cases[key]
	if !ok {
		return nil, false
	}
	return e.Metric(m)
}

// Total sums a metric across entities for every date. Repatriated entities
// are skipped unless includeRepatriated is set; NoValue cells are skipped.
func (r *Result) Total(m Metric, includeRepatriated bool) Series {
	total := make(Series, len(r.Dates))
	for _, e := range r.Cases {
		if e.Repatriated && !includeRepatriated {
			continue
		}
		s, ok := e.Metric(m)
		if !ok {
			continue
		}
		for i, v := range s {
			if !IsNoValue(v) {
				total[i] += v
			}
		}
	}
	return total
}

// Rank orders entity keys by the metric's latest value, largest first.
// Entities without a defined latest value sort last; ties sort by key.
func (r *Result) Rank(m Metric) []string {
	keys := r.Keys()
	latest := make(map[string]float64, len(keys))
	for _, k := range keys {
		s, _ := r.Cases[k].Metric(m)
		latest[k] = s.Last()
	}
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := latest[keys[i]], latest[keys[j]]
		switch {
		case IsNoValue(a):
			return false
		case IsNoValue(b):
			return true
		default:
			return a > b
		}
	})
	return keys
}
