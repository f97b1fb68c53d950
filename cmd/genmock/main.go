// Command genmock writes a synthetic CSSE daily-report directory for local
// runs and demos. Files before -switch use the early header
// (Province/State, Country/Region); later files use the modern header with
// county rows. Point FEED_BASE_URL at the output with a file:// URL.
//
// Usage:
//
//	go run ./cmd/genmock -out data/feed -start 2020-03-01 -end 2020-03-31
//	FEED_BASE_URL=file://$PWD/data/feed FEED_START_DATE=2020-03-01 go run ./cmd/etl
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
)

// modernSwitch is the first date the real feed published the modern header.
var modernSwitch = time.Date(2020, time.March, 22, 0, 0, 0, 0, time.UTC)

var (
	earlyHeader  = []string{"Province/State", "Country/Region", "Last Update", "Confirmed", "Deaths", "Recovered"}
	modernHeader = []string{"FIPS", "Admin2", "Province_State", "Country_Region", "Last_Update", "Lat", "Long_", "Confirmed", "Deaths", "Recovered", "Active", "Combined_Key"}
)

// place is one synthetic reporting location. Counts grow exponentially from
// seed with the given doubling time in days.
type place struct {
	province string
	country  string
	counties []string // modern-schema rows split the state across these
	seed     float64
	doubling float64
}

var places = []place{
	{province: "New York", country: "US", counties: []string{"New York City", "Westchester", "Nassau"}, seed: 20, doubling: 2.5},
	{province: "Washington", country: "US", counties: []string{"King", "Snohomish"}, seed: 80, doubling: 4},
	{province: "New Jersey", country: "US", counties: []string{"Bergen", "Essex"}, seed: 5, doubling: 3},
	{province: "California", country: "US", counties: []string{"Los Angeles", "Santa Clara"}, seed: 40, doubling: 4.5},
	{province: "Diamond Princess", country: "US", seed: 46, doubling: math.Inf(1)},
	{province: "Hubei", country: "China", seed: 67000, doubling: 400},
	{country: "Italy", seed: 1700, doubling: 3.5},
	{country: "Korea, South", seed: 4000, doubling: 12},
	{country: "Spain", seed: 100, doubling: 2.8},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for the daily report files")
	startFlag := flag.String("start", "2020-03-01", "first report date (YYYY-MM-DD)")
	endFlag := flag.String("end", "2020-03-31", "last report date (YYYY-MM-DD)")
	switchFlag := flag.String("switch", modernSwitch.Format(time.DateOnly), "first date written with the modern header")
	gap := flag.String("gap", "", "optional date (YYYY-MM-DD) to leave unpublished")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	start, err := time.Parse(time.DateOnly, *startFlag)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	end, err := time.Parse(time.DateOnly, *endFlag)
	if err != nil {
		return fmt.Errorf("invalid -end: %w", err)
	}
	sw, err := time.Parse(time.DateOnly, *switchFlag)
	if err != nil {
		return fmt.Errorf("invalid -switch: %w", err)
	}
	var skip time.Time
	if *gap != "" {
		if skip, err = time.Parse(time.DateOnly, *gap); err != nil {
			return fmt.Errorf("invalid -gap: %w", err)
		}
	}

	n, err := generate(*out, start, end, sw, skip)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d daily reports to %s\n", n, *out)
	return nil
}

// generate writes one report per date in [start, end] except skip, and
// returns the number of files written.
func generate(dir string, start, end, modernFrom, skip time.Time) (int, error) {
	if end.Before(start) {
		return 0, fmt.Errorf("end %s is before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	written := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Equal(skip) {
			continue
		}
		day := int(d.Sub(start).Hours() / 24)
		rows := earlyRows(d, day)
		header := earlyHeader
		if !d.Before(modernFrom) {
			rows = modernRows(d, day)
			header = modernHeader
		}
		if err := writeCSV(filepath.Join(dir, domain.ReportName(d)+".csv"), header, rows); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// counts returns confirmed, deaths, and recovered for p on the given day.
func (p place) counts(day int) (confirmed, deaths, recovered int64) {
	c := p.seed * math.Pow(2, float64(day)/p.doubling)
	confirmed = int64(math.Round(c))
	deaths = int64(math.Round(c * 0.02))
	recovered = int64(math.Round(c * 0.3 * math.Min(1, float64(day)/30)))
	return confirmed, deaths, recovered
}

func earlyRows(date time.Time, day int) [][]string {
	stamp := date.Add(18 * time.Hour).Format("2006-01-02T15:04:05")
	rows := make([][]string, 0, len(places))
	for _, p := range places {
		c, d, r := p.counts(day)
		rows = append(rows, []string{p.province, p.country, stamp, itoa(c), itoa(d), itoa(r)})
	}
	return rows
}

func modernRows(date time.Time, day int) [][]string {
	stamp := date.Add(18 * time.Hour).Format(time.DateTime)
	var rows [][]string
	for _, p := range places {
		c, d, r := p.counts(day)
		if len(p.counties) == 0 {
			rows = append(rows, modernRow("", p.province, p.country, stamp, c, d, r))
			continue
		}
		// Split the state total across its counties; the first takes the remainder.
		k := int64(len(p.counties))
		for i, county := range p.counties {
			cc, cd, cr := c/k, d/k, r/k
			if i == 0 {
				cc, cd, cr = c-cc*(k-1), d-cd*(k-1), r-cr*(k-1)
			}
			rows = append(rows, modernRow(county, p.province, p.country, stamp, cc, cd, cr))
		}
	}
	return rows
}

func modernRow(county, province, country, stamp string, c, d, r int64) []string {
	combined := country
	if province != "" {
		combined = province + ", " + country
	}
	if county != "" {
		combined = county + ", " + combined
	}
	return []string{"", county, province, country, stamp, "", "", itoa(c), itoa(d), itoa(r), itoa(c - d - r), combined}
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
