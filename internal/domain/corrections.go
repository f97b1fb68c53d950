package domain

import (
	"math"
	"slices"
	"strings"
	"time"
)

// Correction overrides parsed values of one (date, entity) cell to patch a
// known upstream data-entry error. Nil fields keep the parsed value.
type Correction struct {
	Date      time.Time
	Entity    string
	Confirmed *int64
	Deaths    *int64
	Recovered *int64

	// MaxChangeFromPrevious, when set, applies the override only if the parsed
	// confirmed count differs from the previous date's by less than this
	// amount. It guards against overriding a report that upstream later fixed.
	MaxChangeFromPrevious *int64
}

// Applies reports whether the correction's guard admits the parsed value.
func (c Correction) Applies(parsed, previous float64) bool {
	if c.MaxChangeFromPrevious == nil {
		return true
	}
	return math.Abs(parsed-previous) < float64(*c.MaxChangeFromPrevious)
}

// apply overwrites cell i of e with the non-nil override fields.
func (c Correction) apply(e *EntitySeries, i int) {
	if c.Confirmed != nil {
		e.Confirmed[i] = float64(*c.Confirmed)
	}
	if c.Deaths != nil {
		e.Deaths[i] = float64(*c.Deaths)
	}
	if c.Recovered != nil {
		e.Recovered[i] = float64(*c.Recovered)
	}
}

// Apply overwrites cell i of e when the guard admits it, comparing against
// cell i-1. It reports whether anything was changed.
func (c Correction) Apply(e *EntitySeries, i int) bool {
	previous := 0.0
	if i > 0 {
		previous = e.Confirmed[i-1]
	}
	if !c.Applies(e.Confirmed[i], previous) {
		return false
	}
	c.apply(e, i)
	return true
}

type cellKey struct {
	date   time.Time
	entity string
}

// CorrectionRegistry is a static (date, entity) → Correction lookup.
type CorrectionRegistry struct {
	entries map[cellKey]Correction
}

// NewCorrectionRegistry indexes corrections by calendar date and folded entity key.
func NewCorrectionRegistry(corrections []Correction) *CorrectionRegistry {
	r := &CorrectionRegistry{entries: make(map[cellKey]Correction, len(corrections))}
	for _, c := range corrections {
		c.Date = Day(c.Date)
		c.Entity = fold(c.Entity)
		r.entries[cellKey{date: c.Date, entity: c.Entity}] = c
	}
	return r
}

// Lookup returns the correction for (date, key), if any. A nil registry has none.
func (r *CorrectionRegistry) Lookup(date time.Time, key string) (Correction, bool) {
	if r == nil {
		return Correction{}, false
	}
	c, ok := r.entries[cellKey{date: Day(date), entity: key}]
	return c, ok
}

// ForDate returns the corrections registered for date, ordered by entity.
func (r *CorrectionRegistry) ForDate(date time.Time) []Correction {
	if r == nil {
		return nil
	}
	day := Day(date)
	var out []Correction
	for k, c := range r.entries {
		if k.date.Equal(day) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b Correction) int { return strings.Compare(a.Entity, b.Entity) })
	return out
}

// Len returns the number of registered corrections.
func (r *CorrectionRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Injection adds a synthetic record for an entity on one date, for counts the
// feed omitted entirely.
type Injection struct {
	Date      time.Time
	Entity    string
	Confirmed int64
	Deaths    int64
	Recovered int64
}

// DailyException forces the daily delta to NoValue for a known
// discontinuity. An empty Entity applies to every entity on Date.
type DailyException struct {
	Date   time.Time
	Entity string
}

// DailyExceptions is a list of known daily-delta discontinuities.
type DailyExceptions []DailyException

// Excepted reports whether (date, key) is a known discontinuity.
func (d DailyExceptions) Excepted(date time.Time, key string) bool {
	day := Day(date)
	for _, ex := range d {
		if Day(ex.Date).Equal(day) && (ex.Entity == "" || fold(ex.Entity) == key) {
			return true
		}
	}
	return false
}
