package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/covid-timeseries-etl/internal/observability"
)

func TestScheduler_RunsImmediatelyAndOnInterval(t *testing.T) {
	var calls atomic.Int32
	s := New(func(context.Context) error {
		calls.Add(1)
		return nil
	}, 100*time.Millisecond, 0, observability.DiscardLogger())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 10*time.Millisecond, "initial refresh")
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 10*time.Millisecond, "interval refreshes")
}

func TestScheduler_RunNow(t *testing.T) {
	var calls atomic.Int32
	s := New(func(context.Context) error {
		calls.Add(1)
		return errors.New("feed down")
	}, time.Hour, time.Second, observability.DiscardLogger())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, s.RunNow())
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 10*time.Millisecond)
}

func TestScheduler_CancelledContextSkipsRuns(t *testing.T) {
	var calls atomic.Int32
	s := New(func(context.Context) error {
		calls.Add(1)
		return nil
	}, 50*time.Millisecond, 0, observability.DiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestScheduler_RejectsNonPositiveInterval(t *testing.T) {
	s := New(func(context.Context) error { return nil }, 0, 0, observability.DiscardLogger())
	require.Error(t, s.Start(context.Background()))
}
