package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
	"github.com/couchcryptid/covid-timeseries-etl/internal/reference"
)

// accumulator owns the entity series of one aggregation run.
type accumulator struct {
	universe domain.Universe
	table    universeTable
	n        int
	entities map[string]*domain.EntitySeries
	logger   *slog.Logger

	issues    []domain.Issue
	dropped   map[domain.DropReason]int
	corrected int
}

func newAccumulator(u domain.Universe, table universeTable, n int, logger *slog.Logger) *accumulator {
	acc := &accumulator{
		universe: u,
		table:    table,
		n:        n,
		entities: make(map[string]*domain.EntitySeries),
		logger:   logger,
		dropped:  make(map[domain.DropReason]int),
	}
	if u == domain.UniverseUS {
		for _, key := range reference.StateKeys() {
			acc.entities[key] = acc.newSeries(key)
		}
		for key := range table.vessels {
			acc.entities[key] = acc.newSeries(key)
		}
	}
	return acc
}

func (acc *accumulator) newSeries(key string) *domain.EntitySeries {
	e := domain.NewEntitySeries(key, acc.n, acc.universe == domain.UniverseUS)
	e.Repatriated = acc.table.vessels[key]
	return e
}

// entity returns the series for key. The US set is fixed; world entities are
// created zero-filled across the whole axis on first sight.
func (acc *accumulator) entity(key string) (*domain.EntitySeries, bool) {
	if e, ok := acc.entities[key]; ok {
		return e, true
	}
	if acc.universe != domain.UniverseWorld {
		return nil, false
	}
	e := acc.newSeries(key)
	acc.entities[key] = e
	return e, true
}

func (acc *accumulator) drop(date time.Time, location string, reason domain.DropReason) {
	acc.dropped[reason]++
	acc.logger.Debug("record dropped", "universe", acc.universe, "date", domain.ReportName(date), "location", location, "reason", reason)
	acc.issues = append(acc.issues, domain.Issue{Date: date, Location: location, Reason: string(reason)})
}

// addDay sums the day's records into index i, then applies the day's
// injections and corrections to the summed cells.
func (acc *accumulator) addDay(i int, day snapshotDay) {
	for _, rec := range day.records {
		loc, ok := acc.universe.Location(rec)
		if !ok {
			continue
		}
		res := acc.table.resolver.Resolve(loc, day.date)
		if res.Dropped() {
			acc.drop(day.date, loc, res.Reason)
			continue
		}
		e, ok := acc.entity(res.Key)
		if !ok {
			acc.drop(day.date, loc, domain.DropUntrackedEntity)
			continue
		}
		e.Confirmed[i] += float64(rec.Confirmed)
		e.Deaths[i] += float64(rec.Deaths)
		e.Recovered[i] += float64(rec.Recovered)
	}

	for _, in := range acc.table.rules.Injections {
		if !domain.Day(in.Date).Equal(day.date) {
			continue
		}
		e, ok := acc.entity(in.Entity)
		if !ok {
			acc.drop(day.date, in.Entity, domain.DropUntrackedEntity)
			continue
		}
		e.Confirmed[i] += float64(in.Confirmed)
		e.Deaths[i] += float64(in.Deaths)
		e.Recovered[i] += float64(in.Recovered)
	}

	// Corrections patch existing cells only; they never create an entity.
	for _, c := range acc.table.rules.Corrections.ForDate(day.date) {
		e, ok := acc.entities[c.Entity]
		if !ok {
			continue
		}
		if c.Apply(e, i) {
			acc.corrected++
		}
	}
}

func deriveActive(e *domain.EntitySeries) {
	for i := range e.Active {
		e.Active[i] = e.Confirmed[i] - e.Recovered[i] - e.Deaths[i]
	}
}

// deriveDaily fills the day-over-day confirmed delta. Index 0 and excepted
// dates stay NoValue whatever the policy.
func deriveDaily(e *domain.EntitySeries, dates []time.Time, policy domain.DailyPolicy, exceptions domain.DailyExceptions) {
	for i := range e.Daily {
		if i == 0 || exceptions.Excepted(dates[i], e.Key) {
			e.Daily[i] = domain.NoValue
			continue
		}
		delta := e.Confirmed[i] - e.Confirmed[i-1]
		if policy == domain.DailyClampNegative && delta < 0 {
			delta = 0
		}
		e.Daily[i] = delta
	}
}

// deriveNormalized fills cases per 100,000 residents. Without a population
// figure the series is left all NoValue.
func deriveNormalized(e *domain.EntitySeries, populations map[string]int64) error {
	pop, ok := populations[e.Key]
	if !ok || pop <= 0 {
		for i := range e.ConfirmedNormalized {
			e.ConfirmedNormalized[i] = domain.NoValue
		}
		return fmt.Errorf("normalize %s: %w", e.Key, domain.ErrMissingPopulation)
	}
	for i, v := range e.Confirmed {
		e.ConfirmedNormalized[i] = v / float64(pop) * perCapita
	}
	return nil
}
