// Package domain models the CSSE COVID-19 daily report data and the
// time-series structures derived from it.
//
// # Data Source
//
// Daily reports are published by the Johns Hopkins CSSE repository as one CSV
// per calendar day, named by date:
//
//	csse_covid_19_data/csse_covid_19_daily_reports/MM-DD-YYYY.csv
//
// The first report is 01-22-2020. The feed has gaps at the start of its
// history, so dates are probed for existence before use. Once reports start
// appearing they are assumed to be contiguous.
//
// # Schema Eras
//
// Early reports (through 03-21-2020) use slash-separated headers:
//
//	Province/State, Country/Region, Last Update, Confirmed, Deaths, Recovered
//
// Later reports switched to underscore headers and county-level US rows:
//
//	FIPS, Admin2, Province_State, Country_Region, Last_Update, Lat, Long_,
//	Confirmed, Deaths, Recovered, Active, Combined_Key
//
// Numeric cells may be blank (treated as zero) or rendered as decimals
// ("12.0").
//
// # Location Conventions
//
// Early US rows carry county-level strings in the province column,
// e.g. "King County, WA" or "Travis, CA (From Diamond Princess)". The text
// after the last comma is a state abbreviation. Cruise ship passengers are
// tracked as separate repatriated pseudo-entities rather than under the state
// where they were quarantined. Country names drift over time
// ("Republic of Korea" → "Korea, South", "Taiwan*") and are collapsed by the
// rename table.
//
// # Entities and Series
//
// An entity is identified by its lower-case canonical key. Every metric
// series of every entity has exactly one value per date on the result's date
// axis. Derived values that have no meaning (the first daily delta, known
// discontinuities) hold [NoValue], which encodes as JSON null.
//
// # Doubling Time
//
// Doubling time over a lag window is lag·ln2/ln(end/start). Degenerate
// windows yield [DegenerateDoubling]. See [PointDoublingTime].
package domain
