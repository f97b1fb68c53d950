package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func TestCorrectionRegistry_Lookup(t *testing.T) {
	date := time.Date(2020, time.March, 13, 0, 0, 0, 0, time.UTC)
	reg := NewCorrectionRegistry([]Correction{
		{Date: date, Entity: "New Jersey", Confirmed: ptr(51)},
	})

	c, ok := reg.Lookup(date.Add(15*time.Hour), "new jersey")
	require.True(t, ok)
	assert.Equal(t, int64(51), *c.Confirmed)

	_, ok = reg.Lookup(date.AddDate(0, 0, 1), "new jersey")
	assert.False(t, ok)
	_, ok = reg.Lookup(date, "new york")
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Len())

	var nilReg *CorrectionRegistry
	_, ok = nilReg.Lookup(date, "new jersey")
	assert.False(t, ok)
}

func TestCorrection_Apply(t *testing.T) {
	e := NewEntitySeries("new jersey", 2, false)
	e.Confirmed = Series{29, 98}
	e.Deaths = Series{1, 2}

	c := Correction{Confirmed: ptr(51)}
	assert.True(t, c.Apply(e, 1))
	assert.Equal(t, 51.0, e.Confirmed[1])
	assert.Equal(t, 2.0, e.Deaths[1], "nil fields keep the parsed value")
}

func TestCorrection_Guard(t *testing.T) {
	e := NewEntitySeries("italy", 2, false)
	e.Confirmed = Series{12462, 12462}

	c := Correction{Confirmed: ptr(15113), Deaths: ptr(1016), MaxChangeFromPrevious: ptr(200)}
	assert.True(t, c.Apply(e, 1))
	assert.Equal(t, 15113.0, e.Confirmed[1])
	assert.Equal(t, 1016.0, e.Deaths[1])

	fixed := NewEntitySeries("italy", 2, false)
	fixed.Confirmed = Series{12462, 15113}
	assert.False(t, c.Apply(fixed, 1), "upstream already fixed the report")
}

func TestDailyExceptions(t *testing.T) {
	date := time.Date(2020, time.February, 13, 0, 0, 0, 0, time.UTC)
	ex := DailyExceptions{{Date: date, Entity: "Mainland China"}}

	assert.True(t, ex.Excepted(date, "mainland china"))
	assert.False(t, ex.Excepted(date, "italy"))
	assert.False(t, ex.Excepted(date.AddDate(0, 0, 1), "mainland china"))

	all := DailyExceptions{{Date: date}}
	assert.True(t, all.Excepted(date, "italy"))
}

func TestCorrectionRegistry_ForDate(t *testing.T) {
	date := time.Date(2020, time.March, 13, 0, 0, 0, 0, time.UTC)
	reg := NewCorrectionRegistry([]Correction{
		{Date: date, Entity: "New Jersey", Confirmed: ptr(51)},
		{Date: date, Entity: "arkansas", Confirmed: ptr(9)},
		{Date: date.AddDate(0, 0, 1), Entity: "colorado", Confirmed: ptr(77)},
	})

	got := reg.ForDate(date)
	require.Len(t, got, 2)
	assert.Equal(t, "arkansas", got[0].Entity)
	assert.Equal(t, "new jersey", got[1].Entity)
	assert.Empty(t, reg.ForDate(date.AddDate(0, 0, 2)))
}
