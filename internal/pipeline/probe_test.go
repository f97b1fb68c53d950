package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
	"github.com/couchcryptid/covid-timeseries-etl/internal/observability"
	"github.com/couchcryptid/covid-timeseries-etl/internal/pipeline"
)

type scriptedChecker struct {
	answers map[string]error // nil error means available
	checked []string
}

func (s *scriptedChecker) Exists(_ context.Context, date time.Time) (bool, error) {
	name := domain.ReportName(date)
	s.checked = append(s.checked, name)
	err, ok := s.answers[name]
	if !ok {
		return false, nil
	}
	return err == nil, err
}

func TestProber_Dates(t *testing.T) {
	checker := &scriptedChecker{answers: map[string]error{
		"03-10-2020": nil,
		"03-11-2020": errors.New("timeout"),
		"03-13-2020": nil,
	}}
	p := pipeline.NewProber(checker, observability.DiscardLogger(), observability.NewMetricsForTesting())

	dates, issues, err := p.Dates(context.Background(), march10.Add(13*time.Hour), march10.AddDate(0, 0, 4))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{march10, march10.AddDate(0, 0, 3)}, dates)
	assert.Equal(t, []string{"03-10-2020", "03-11-2020", "03-12-2020", "03-13-2020", "03-14-2020"}, checker.checked,
		"every day checked exactly once")
	require.Len(t, issues, 1)
	assert.Equal(t, march10.AddDate(0, 0, 1), issues[0].Date)
}

func TestProbeDates_UnreachableAborts(t *testing.T) {
	checker := &scriptedChecker{answers: map[string]error{
		"03-10-2020": nil,
		"03-11-2020": domain.ErrSourceUnreachable,
	}}

	dates, err := pipeline.ProbeDates(context.Background(), checker, march10, march15)
	require.ErrorIs(t, err, domain.ErrSourceUnreachable)
	assert.Nil(t, dates)
	assert.Len(t, checker.checked, 2, "no checks after the fatal one")
}

func TestProbeDates_EndBeforeStart(t *testing.T) {
	checker := &scriptedChecker{}
	dates, err := pipeline.ProbeDates(context.Background(), checker, march15, march10)
	require.NoError(t, err)
	assert.Empty(t, dates)
	assert.Empty(t, checker.checked)
}
