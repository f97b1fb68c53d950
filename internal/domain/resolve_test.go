package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const (
	keyDiamond = "diamond princess"
	keyGrand   = "grand princess"
)

var (
	fixupDate = time.Date(2020, time.February, 21, 0, 0, 0, 0, time.UTC)
	laterDate = time.Date(2020, time.March, 5, 0, 0, 0, 0, time.UTC)
)

func usResolver() *Resolver {
	return NewResolver(ResolverRules{
		Fixups: []Fixup{{
			Date:     fixupDate,
			Contains: []string{"Lackland, TX", "Travis, CA", "Ashland, NE"},
			Target:   keyDiamond,
		}},
		Vessels: []Vessel{
			{Name: "Diamond Princess", Key: keyDiamond},
			{Name: "Grand Princess", Key: keyGrand},
		},
		Exceptions: map[string]string{"Virgin Islands, U.S.": "virgin islands"},
	}, map[string]string{
		"CA":   "California",
		"TX":   "Texas",
		"WA":   "Washington",
		"D.C.": "District of Columbia",
	})
}

func worldResolver() *Resolver {
	return NewResolver(ResolverRules{
		Renames: map[string]string{
			"Korea, South":      "south korea",
			"Republic of Korea": "south korea",
			"Taiwan*":           "taiwan",
			"China":             "mainland china",
		},
	}, nil)
}

func TestResolver_US(t *testing.T) {
	r := usResolver()

	tests := []struct {
		name string
		raw  string
		date time.Time
		want Resolution
	}{
		{"full state name", "Washington", laterDate, Resolution{Key: "washington"}},
		{"state name case folded", "  NEW YORK ", laterDate, Resolution{Key: "new york"}},
		{"county with abbreviation", "King County, WA", laterDate, Resolution{Key: "washington"}},
		{"dotted abbreviation", "Washington, D.C.", laterDate, Resolution{Key: "district of columbia"}},
		{"vessel with qualifier", "Travis, CA (From Diamond Princess)", laterDate, Resolution{Key: keyDiamond}},
		{"vessel suffix beats region", "Diamond Princess, CA", laterDate, Resolution{Key: keyDiamond}},
		{"grand princess", "Grand Princess Cruise Ship", laterDate, Resolution{Key: keyGrand}},
		{"date fixup applies on its date", "Lackland, TX", fixupDate, Resolution{Key: keyDiamond}},
		{"date fixup ignored on other dates", "Lackland, TX", laterDate, Resolution{Key: "texas"}},
		{"territory exception", "Virgin Islands, U.S.", laterDate, Resolution{Key: "virgin islands"}},
		{"unknown region code", "Somewhere, ZZ", laterDate, Resolution{Reason: DropUnknownRegion}},
		{"empty", "   ", laterDate, Resolution{Reason: DropEmptyLocation}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.raw, tt.date)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Reason != "", got.Dropped())
		})
	}
}

func TestResolver_DiamondPrincessNeverCalifornia(t *testing.T) {
	r := usResolver()
	start := time.Date(2020, time.January, 22, 0, 0, 0, 0, time.UTC)
	for d := start; d.Before(start.AddDate(0, 3, 0)); d = d.AddDate(0, 0, 1) {
		assert.Equal(t, keyDiamond, r.Resolve("Diamond Princess, CA", d).Key, d.Format(time.DateOnly))
	}
}

func TestResolver_World(t *testing.T) {
	r := worldResolver()

	tests := []struct {
		raw  string
		want string
	}{
		{"Korea, South", "south korea"},
		{"Republic of Korea", "south korea"},
		{"Taiwan*", "taiwan"},
		{"China", "mainland china"},
		{"Italy", "italy"},
		{"Diamond Princess", keyDiamond},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.raw, laterDate).Key)
		})
	}
}

func TestResolver_AliasStableAcrossDates(t *testing.T) {
	r := worldResolver()
	start := time.Date(2020, time.January, 22, 0, 0, 0, 0, time.UTC)
	for d := start; d.Before(start.AddDate(1, 0, 0)); d = d.AddDate(0, 0, 7) {
		assert.Equal(t, "south korea", r.Resolve("Korea, South", d).Key)
	}
}
