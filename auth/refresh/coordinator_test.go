package refresh_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-console-client/auth/refresh"
)

// blockingRefresh is a controllable refresh function for driving the
// coordinator through its states.
type blockingRefresh struct {
	calls   atomic.Int32
	started chan struct{} // signalled once per call
	release chan error    // outcome per call
}

func newBlockingRefresh() *blockingRefresh {
	return &blockingRefresh{
		started: make(chan struct{}, 16),
		release: make(chan error, 16),
	}
}

func (br *blockingRefresh) fn(ctx context.Context) error {
	br.calls.Add(1)
	br.started <- struct{}{}
	select {
	case err := <-br.release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestCoordinatorSingleFlight(t *testing.T) {
	br := newBlockingRefresh()
	coordinator, err := refresh.NewCoordinator(br.fn)
	require.NoError(t, err)

	const queued = 5

	var wg sync.WaitGroup
	results := make(chan error, queued+1)

	// First caller starts the refresh.
	wg.Add(1)
	go func() {
		defer wg.Done()
		results <- coordinator.Await(context.Background())
	}()

	// Wait until the refresh call is actually in flight.
	select {
	case <-br.started:
	case <-time.After(time.Second):
		t.Fatal("refresh never started")
	}

	// Everyone else queues behind it.
	for i := 0; i < queued; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- coordinator.Await(context.Background())
		}()
	}

	// None of the queued callers may resolve before the refresh settles.
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, results)

	br.release <- nil
	wg.Wait()

	close(results)
	var resolved int
	for err := range results {
		require.NoError(t, err)
		resolved++
	}
	require.Equal(t, queued+1, resolved, "every caller resolves exactly once")
	require.Equal(t, int32(1), br.calls.Load(), "exactly one refresh call")
}

func TestCoordinatorFailureRejectsAllWaiters(t *testing.T) {
	br := newBlockingRefresh()

	var hookErr error
	coordinator, err := refresh.NewCoordinator(br.fn, refresh.WithResultHook(func(e error) {
		hookErr = e
	}))
	require.NoError(t, err)

	refreshErr := errors.New("refresh token rejected")

	var wg sync.WaitGroup
	results := make(chan error, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results <- coordinator.Await(context.Background())
	}()
	<-br.started

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- coordinator.Await(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)

	br.release <- refreshErr
	wg.Wait()

	close(results)
	for err := range results {
		require.ErrorIs(t, err, refreshErr)
	}
	require.ErrorIs(t, hookErr, refreshErr)
}

func TestCoordinatorSequentialRefreshes(t *testing.T) {
	br := newBlockingRefresh()
	coordinator, err := refresh.NewCoordinator(br.fn)
	require.NoError(t, err)

	br.release <- nil
	require.NoError(t, coordinator.Await(context.Background()))

	// Once settled the coordinator is idle again; a later 401 refreshes anew.
	br.release <- nil
	require.NoError(t, coordinator.Await(context.Background()))

	require.Equal(t, int32(2), br.calls.Load())
}

func TestCoordinatorWaiterHonoursContext(t *testing.T) {
	br := newBlockingRefresh()
	coordinator, err := refresh.NewCoordinator(br.fn)
	require.NoError(t, err)

	go func() {
		_ = coordinator.Await(context.Background())
	}()
	<-br.started

	ctx, cancel := context.WithCancel(context.Background())
	waiterDone := make(chan error, 1)
	go func() {
		waiterDone <- coordinator.Await(ctx)
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-waiterDone:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled waiter never returned")
	}

	br.release <- nil
}

func TestCoordinatorRefreshOutlivesTriggeringContext(t *testing.T) {
	br := newBlockingRefresh()
	coordinator, err := refresh.NewCoordinator(br.fn, refresh.WithTimeout(time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- coordinator.Await(ctx)
	}()
	<-br.started

	// Cancelling the trigger must not kill the shared refresh call.
	cancel()
	time.Sleep(20 * time.Millisecond)
	br.release <- nil

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("refresh never settled")
	}
}

func TestCoordinatorReset(t *testing.T) {
	br := newBlockingRefresh()
	coordinator, err := refresh.NewCoordinator(br.fn)
	require.NoError(t, err)

	go func() {
		_ = coordinator.Await(context.Background())
	}()
	<-br.started

	waiterDone := make(chan error, 1)
	go func() {
		waiterDone <- coordinator.Await(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)

	resetErr := errors.New("logged out")
	coordinator.Reset(resetErr)

	select {
	case err := <-waiterDone:
		require.ErrorIs(t, err, resetErr)
	case <-time.After(time.Second):
		t.Fatal("reset never released the waiter")
	}

	br.release <- nil
}
