// Command validate checks the integrity of an aggregation result written as
// JSON, either by `report -json` or by GET /series/{universe}. It verifies the
// date axis, series alignment, the active and daily identities, and the
// universe-specific normalized series.
//
// Usage:
//
//	go run ./cmd/validate -result out/us.json
//	curl -s localhost:8080/series/us | go run ./cmd/validate -result -
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"iter"
	"math"
	"os"

	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
)

// tolerance absorbs float rounding in derived series.
const tolerance = 1e-6

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	path := flag.String("result", "", "path to a result JSON document, or - for stdin")
	flag.Parse()

	if *path == "" {
		flag.Usage()
		os.Exit(1)
	}

	result, err := loadResult(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load result: %v\n", err)
		os.Exit(1)
	}
	os.Exit(report(os.Stdout, result))
}

func loadResult(path string) (*domain.Result, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var result domain.Result
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func report(w io.Writer, result *domain.Result) int {
	fmt.Fprintf(w, "=== Result Integrity Validation (%s, run %s) ===\n\n", result.Universe, result.RunID)

	phases := validate(result)

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-34s %s\n", p.name, status)
	}

	fmt.Fprintf(w, "\nDates: %d, entities: %d, issues: %d\n", len(result.Dates), len(result.Cases), len(result.Issues))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

func validate(result *domain.Result) []*phase {
	return []*phase{
		validateAxis(result),
		validateAlignment(result),
		validateActive(result),
		validateDaily(result),
		validateNormalized(result),
	}
}

// ── Phases ──

func validateAxis(result *domain.Result) *phase {
	p := &phase{name: "Date axis"}
	if len(result.Dates) == 0 {
		p.errorf("date axis is empty")
	}
	for i, d := range result.Dates {
		if !d.Equal(domain.Day(d)) {
			p.errorf("dates[%d] %s is not a UTC calendar day", i, d.Format(timeLayout))
		}
		if i > 0 && !d.After(result.Dates[i-1]) {
			p.errorf("dates[%d] %s does not follow %s", i, d.Format(timeLayout), result.Dates[i-1].Format(timeLayout))
		}
	}
	return p
}

func validateAlignment(result *domain.Result) *phase {
	p := &phase{name: "Series alignment"}
	n := len(result.Dates)
	for _, key := range result.Keys() {
		e := result.Cases[key]
		if e.Key != key {
			p.errorf("%s: entry carries key %q", key, e.Key)
		}
		for _, m := range e.Metrics() {
			s, _ := e.Metric(m)
			if len(s) != n {
				p.errorf("%s: %s has %d cells, axis has %d", key, m, len(s), n)
			}
		}
	}
	return p
}

func validateActive(result *domain.Result) *phase {
	p := &phase{name: "Active = confirmed - deaths - recovered"}
	for _, key := range result.Keys() {
		e := result.Cases[key]
		for i := range cells(e, result) {
			want := e.Confirmed[i] - e.Deaths[i] - e.Recovered[i]
			if !closeTo(e.Active[i], want) {
				p.errorf("%s: active[%d] = %v, want %v", key, i, e.Active[i], want)
			}
		}
	}
	return p
}

func validateDaily(result *domain.Result) *phase {
	p := &phase{name: "Daily deltas"}
	clamp := result.Daily == domain.DailyClampNegative.String()
	for _, key := range result.Keys() {
		e := result.Cases[key]
		for i := range cells(e, result) {
			got := e.Daily[i]
			if i == 0 {
				if !domain.IsNoValue(got) {
					p.errorf("%s: daily[0] = %v, want no value", key, got)
				}
				continue
			}
			// Excepted dates carry no value.
			if domain.IsNoValue(got) {
				continue
			}
			want := e.Confirmed[i] - e.Confirmed[i-1]
			if clamp {
				want = math.Max(want, 0)
			}
			if !closeTo(got, want) {
				p.errorf("%s: daily[%d] = %v, want %v", key, i, got, want)
			}
		}
	}
	return p
}

func validateNormalized(result *domain.Result) *phase {
	p := &phase{name: "Normalized series"}
	for _, key := range result.Keys() {
		e := result.Cases[key]
		switch {
		case result.Universe == domain.UniverseUS && e.ConfirmedNormalized == nil:
			p.errorf("%s: US entity has no confirmed_normalized series", key)
		case result.Universe != domain.UniverseUS && e.ConfirmedNormalized != nil:
			p.errorf("%s: %s entity carries confirmed_normalized", key, result.Universe)
		}
		for i, v := range e.ConfirmedNormalized {
			if !domain.IsNoValue(v) && v < 0 {
				p.errorf("%s: confirmed_normalized[%d] = %v is negative", key, i, v)
			}
		}
	}
	return p
}

const timeLayout = "2006-01-02"

// cells yields the indexes shared by the axis and every base series of e.
func cells(e *domain.EntitySeries, result *domain.Result) iter.Seq[int] {
	n := min(len(result.Dates), len(e.Confirmed), len(e.Deaths), len(e.Recovered), len(e.Active), len(e.Daily))
	return func(yield func(int) bool) {
		for i := range n {
			if !yield(i) {
				return
			}
		}
	}
}

func closeTo(got, want float64) bool {
	if domain.IsNoValue(got) || domain.IsNoValue(want) {
		return domain.IsNoValue(got) && domain.IsNoValue(want)
	}
	return math.Abs(got-want) <= tolerance
}
