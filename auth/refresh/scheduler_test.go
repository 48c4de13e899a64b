package refresh_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-console-client/auth/refresh"
)

func TestSchedulerRenewsOnInterval(t *testing.T) {
	var runs atomic.Int32
	scheduler, err := refresh.NewScheduler(10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, zerolog.Nop())
	require.NoError(t, err)

	scheduler.Start()
	defer scheduler.Stop()

	require.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, time.Second, 5*time.Millisecond, "scheduler should keep renewing")
	require.True(t, scheduler.Running())
}

func TestSchedulerStopsAfterFailedRenewal(t *testing.T) {
	var runs atomic.Int32
	scheduler, err := refresh.NewScheduler(10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("refresh failed")
	}, zerolog.Nop())
	require.NoError(t, err)

	scheduler.Start()

	require.Eventually(t, func() bool {
		return !scheduler.Running()
	}, time.Second, 5*time.Millisecond)

	// No further renewals once stopped.
	stopped := runs.Load()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, stopped, runs.Load())
}

func TestSchedulerStartStopIdempotent(t *testing.T) {
	scheduler, err := refresh.NewScheduler(time.Hour, func(ctx context.Context) error {
		return nil
	}, zerolog.Nop())
	require.NoError(t, err)

	scheduler.Start()
	scheduler.Start()
	require.True(t, scheduler.Running())

	scheduler.Stop()
	scheduler.Stop()
	require.False(t, scheduler.Running())
}

func TestSchedulerRestartsAfterStop(t *testing.T) {
	var runs atomic.Int32
	scheduler, err := refresh.NewScheduler(10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, zerolog.Nop())
	require.NoError(t, err)

	scheduler.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, 5*time.Millisecond)
	scheduler.Stop()

	scheduler.Start()
	defer scheduler.Stop()

	before := runs.Load()
	require.Eventually(t, func() bool {
		return runs.Load() > before
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerRejectsInvalidConstruction(t *testing.T) {
	_, err := refresh.NewScheduler(0, func(ctx context.Context) error { return nil }, zerolog.Nop())
	require.Error(t, err)

	_, err = refresh.NewScheduler(time.Minute, nil, zerolog.Nop())
	require.Error(t, err)
}
