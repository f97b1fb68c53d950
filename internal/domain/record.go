package domain

import (
	"fmt"
	"strings"
)

// RawRecord is one row of a daily report after column normalization.
type RawRecord struct {
	Province  string
	Country   string
	Confirmed int64
	Deaths    int64
	Recovered int64
}

// Universe selects which entities an aggregation tracks.
type Universe string

const (
	// UniverseUS tracks the fixed set of US states, territories and
	// repatriated vessels, using the province column of US rows.
	UniverseUS Universe = "us"
	// UniverseWorld discovers countries as they appear, using the country column.
	UniverseWorld Universe = "world"
)

// ParseUniverse accepts "us" or "world", case-insensitively.
func ParseUniverse(s string) (Universe, error) {
	switch u := Universe(strings.ToLower(strings.TrimSpace(s))); u {
	case UniverseUS, UniverseWorld:
		return u, nil
	default:
		return "", fmt.Errorf("unknown universe %q", s)
	}
}

// Location returns the raw location string the universe resolves entities
// from. ok is false when the record does not belong to the universe; an
// in-universe record may still carry an empty location.
func (u Universe) Location(rec RawRecord) (loc string, ok bool) {
	switch u {
	case UniverseUS:
		return rec.Province, strings.EqualFold(strings.TrimSpace(rec.Country), "US")
	case UniverseWorld:
		return rec.Country, true
	default:
		return "", false
	}
}

// DailyPolicy controls what happens to negative day-over-day deltas.
// The zero value is deliberately invalid so callers must choose.
type DailyPolicy int

const (
	// DailyAllowNegative keeps negative deltas as reported.
	DailyAllowNegative DailyPolicy = iota + 1
	// DailyClampNegative replaces negative deltas with zero.
	DailyClampNegative
)

// ParseDailyPolicy accepts "allow" or "clamp".
func ParseDailyPolicy(s string) (DailyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allow":
		return DailyAllowNegative, nil
	case "clamp":
		return DailyClampNegative, nil
	default:
		return 0, fmt.Errorf("unknown daily policy %q (want allow or clamp)", s)
	}
}

func (p DailyPolicy) String() string {
	switch p {
	case DailyAllowNegative:
		return "allow"
	case DailyClampNegative:
		return "clamp"
	default:
		return "unset"
	}
}
