package reference

import (
	"fmt"
	"strconv"
	"strings"
)

// stateAbbreviations maps the region codes used in early US report rows to
// state and territory names.
var stateAbbreviations = map[string]string{
	"AL":   "Alabama",
	"AK":   "Alaska",
	"AZ":   "Arizona",
	"AR":   "Arkansas",
	"CA":   "California",
	"CO":   "Colorado",
	"CT":   "Connecticut",
	"DE":   "Delaware",
	"D.C.": "District of Columbia",
	"FL":   "Florida",
	"GA":   "Georgia",
	"HI":   "Hawaii",
	"ID":   "Idaho",
	"IL":   "Illinois",
	"IN":   "Indiana",
	"IA":   "Iowa",
	"KS":   "Kansas",
	"KY":   "Kentucky",
	"LA":   "Louisiana",
	"ME":   "Maine",
	"MD":   "Maryland",
	"MA":   "Massachusetts",
	"MI":   "Michigan",
	"MN":   "Minnesota",
	"MS":   "Mississippi",
	"MO":   "Missouri",
	"MT":   "Montana",
	"NE":   "Nebraska",
	"NV":   "Nevada",
	"NH":   "New Hampshire",
	"NJ":   "New Jersey",
	"NM":   "New Mexico",
	"NY":   "New York",
	"NC":   "North Carolina",
	"ND":   "North Dakota",
	"OH":   "Ohio",
	"OK":   "Oklahoma",
	"OR":   "Oregon",
	"PA":   "Pennsylvania",
	"RI":   "Rhode Island",
	"SC":   "South Carolina",
	"SD":   "South Dakota",
	"TN":   "Tennessee",
	"TX":   "Texas",
	"UT":   "Utah",
	"VT":   "Vermont",
	"VA":   "Virginia",
	"WA":   "Washington",
	"WV":   "West Virginia",
	"WI":   "Wisconsin",
	"WY":   "Wyoming",
	"VI":   "Virgin Islands",
	"PR":   "Puerto Rico",
}

// statePopulations holds 2019 census estimates, formatted as published.
// The repatriated vessels carry a nominal passenger count.
var statePopulations = map[string]string{
	"Alabama":              "4,903,185",
	"Alaska":               "731,545",
	"Arizona":              "7,278,717",
	"Arkansas":             "3,017,825",
	"California":           "39,512,223",
	"Colorado":             "5,758,736",
	"Connecticut":          "3,565,287",
	"Delaware":             "973,764",
	"District Of Columbia": "705,749",
	"Florida":              "21,477,737",
	"Georgia":              "10,617,423",
	"Hawaii":               "1,415,872",
	"Idaho":                "1,787,147",
	"Illinois":             "12,671,821",
	"Indiana":              "6,732,219",
	"Iowa":                 "3,155,070",
	"Kansas":               "2,913,314",
	"Kentucky":             "4,467,673",
	"Louisiana":            "4,648,794",
	"Maine":                "1,344,212",
	"Maryland":             "6,045,680",
	"Massachusetts":        "6,949,503",
	"Michigan":             "9,986,857",
	"Minnesota":            "5,639,632",
	"Mississippi":          "2,976,149",
	"Missouri":             "6,137,428",
	"Montana":              "1,068,778",
	"Nebraska":             "1,934,408",
	"Nevada":               "3,080,156",
	"New Hampshire":        "1,359,711",
	"New Jersey":           "8,882,190",
	"New Mexico":           "2,096,829",
	"New York":             "19,453,561",
	"North Carolina":       "10,488,084",
	"North Dakota":         "762,062",
	"Ohio":                 "11,689,100",
	"Oklahoma":             "3,956,971",
	"Oregon":               "4,217,737",
	"Pennsylvania":         "12,801,989",
	"Rhode Island":         "1,059,361",
	"South Carolina":       "5,148,714",
	"South Dakota":         "884,659",
	"Tennessee":            "6,833,174",
	"Texas":                "28,995,881",
	"Utah":                 "3,205,958",
	"Vermont":              "623,989",
	"Virginia":             "8,535,519",
	"Washington":           "7,614,893",
	"West Virginia":        "1,792,065",
	"Wisconsin":            "5,822,434",
	"Wyoming":              "578,759",
	"Virgin Islands":       "104,914",
	"Puerto Rico":          "3,193,694",
	"Diamond Princess":     "3000",
	"Grand Princess":       "3000",
}

// StateAbbreviations returns a copy of the region-code → name table.
func StateAbbreviations() map[string]string {
	out := make(map[string]string, len(stateAbbreviations))
	for k, v := range stateAbbreviations {
		out[k] = v
	}
	return out
}

// StateKeys returns the canonical (lower-case) keys of every state and territory.
func StateKeys() []string {
	keys := make([]string, 0, len(stateAbbreviations))
	for _, name := range stateAbbreviations {
		keys = append(keys, strings.ToLower(name))
	}
	return keys
}

// Populations parses the population table into canonical key → residents.
func Populations() (map[string]int64, error) {
	out := make(map[string]int64, len(statePopulations))
	for name, raw := range statePopulations {
		n, err := ParsePopulation(raw)
		if err != nil {
			return nil, fmt.Errorf("population for %s: %w", name, err)
		}
		out[strings.ToLower(name)] = n
	}
	return out, nil
}

// ParsePopulation parses a figure with thousands separators, e.g. "4,903,185".
func ParsePopulation(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 10, 64)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("population must be positive, got %d", n)
	}
	return n, nil
}
