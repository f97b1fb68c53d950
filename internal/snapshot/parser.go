// Package snapshot parses one CSSE daily report CSV into raw records,
// normalizing the two historical column-naming schemes.
package snapshot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
)

// Column names, modern scheme first. Lookups try each in order.
var (
	provinceColumns  = []string{"Province_State", "Province/State"}
	countryColumns   = []string{"Country_Region", "Country/Region"}
	combinedColumns  = []string{"Combined_Key"}
	confirmedColumns = []string{"Confirmed"}
	deathsColumns    = []string{"Deaths"}
	recoveredColumns = []string{"Recovered"}
)

// Reasons a count cell is rejected.
var (
	ErrNotACount     = errors.New("not a count")
	ErrNotWholeCount = errors.New("not a whole count")
)

// RowError describes a row dropped for an unparseable numeric cell.
type RowError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: column %s: %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// Result holds the parsed records and the rows that were rejected.
type Result struct {
	Records []domain.RawRecord
	Rejects []RowError
}

// layout maps the columns of one file to their indexes; -1 means absent.
type layout struct {
	province, country, combined   int
	confirmed, deaths, recovered int
}

// Parse reads a daily report. A file without a recognizable country or
// location column fails with domain.ErrUnknownSchema; individual malformed
// rows are returned as Rejects and the rest of the file is still parsed.
func Parse(r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Result{}, fmt.Errorf("parse snapshot: empty report: %w", domain.ErrUnknownSchema)
		}
		return Result{}, fmt.Errorf("parse snapshot header: %w", err)
	}

	l, err := detectLayout(header)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.Rejects = append(res.Rejects, RowError{Line: perr.Line, Err: perr.Err})
				continue
			}
			return res, fmt.Errorf("parse snapshot: %w", err)
		}

		line, _ := cr.FieldPos(0)
		rec, rerr := l.record(row, line)
		if rerr != nil {
			res.Rejects = append(res.Rejects, *rerr)
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func detectLayout(header []string) (layout, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		index[h] = i
	}
	find := func(names []string) int {
		for _, n := range names {
			if i, ok := index[n]; ok {
				return i
			}
		}
		return -1
	}

	l := layout{
		province:  find(provinceColumns),
		country:   find(countryColumns),
		combined:  find(combinedColumns),
		confirmed: find(confirmedColumns),
		deaths:    find(deathsColumns),
		recovered: find(recoveredColumns),
	}
	if l.country < 0 && l.combined < 0 {
		return layout{}, fmt.Errorf("parse snapshot: no country column in %v: %w", header, domain.ErrUnknownSchema)
	}
	return l, nil
}

func (l layout) record(row []string, line int) (domain.RawRecord, *RowError) {
	province, country := cell(row, l.province), cell(row, l.country)
	if l.province < 0 && l.combined >= 0 {
		province, country = splitCombined(cell(row, l.combined), country)
	}

	rec := domain.RawRecord{Province: province, Country: country}
	fields := []struct {
		name string
		idx  int
		dst  *int64
	}{
		{"Confirmed", l.confirmed, &rec.Confirmed},
		{"Deaths", l.deaths, &rec.Deaths},
		{"Recovered", l.recovered, &rec.Recovered},
	}
	for _, f := range fields {
		raw := cell(row, f.idx)
		n, err := parseCount(raw)
		if err != nil {
			return domain.RawRecord{}, &RowError{Line: line, Column: f.name, Value: raw, Err: err}
		}
		*f.dst = n
	}
	return rec, nil
}

// splitCombined splits "Province, Country" on its last comma. A value
// without a comma is a country-level row.
func splitCombined(combined, country string) (string, string) {
	i := strings.LastIndex(combined, ",")
	if i < 0 {
		if country == "" {
			country = combined
		}
		return "", country
	}
	if country == "" {
		country = strings.TrimSpace(combined[i+1:])
	}
	return strings.TrimSpace(combined[:i]), country
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseCount reads a count cell. Blank cells are zero; integral decimals
// such as "12.0" are accepted. Negative values pass through as published.
func parseCount(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNotACount, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNotACount
	}
	if f != math.Trunc(f) {
		return 0, ErrNotWholeCount
	}
	return int64(f), nil
}
