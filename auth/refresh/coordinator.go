// Package refresh owns the token renewal protocol: the single-flight
// coordinator that serializes refresh calls triggered by concurrent 401s,
// and the proactive scheduler that renews ahead of expiry.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Func performs one refresh call against the server and persists the result.
// It is supplied by the auth client; the coordinator only guarantees it runs
// single-flight.
type Func func(ctx context.Context) error

// ResultHook observes the outcome of every completed refresh. The auth client
// uses it to escalate auth-class failures to logout.
type ResultHook func(err error)

// Coordinator guarantees at most one refresh call is outstanding at any time.
// Callers that hit a 401 while a refresh is in flight queue behind it and are
// all released with the same outcome, each exactly once.
type Coordinator struct {
	refreshFn Func
	onResult  ResultHook
	timeout   time.Duration
	log       zerolog.Logger

	lock       sync.Mutex
	refreshing bool
	waiters    []chan error
}

// CoordinatorOption modifies a Coordinator during construction.
type CoordinatorOption func(*Coordinator)

// WithResultHook registers a hook invoked after every refresh settles.
func WithResultHook(hook ResultHook) CoordinatorOption {
	return func(c *Coordinator) {
		c.onResult = hook
	}
}

// WithTimeout bounds the refresh network call.
func WithTimeout(timeout time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.timeout = timeout
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(log zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.log = log
	}
}

// NewCoordinator creates a Coordinator around the given refresh function.
func NewCoordinator(refreshFn Func, options ...CoordinatorOption) (*Coordinator, error) {
	if refreshFn == nil {
		return nil, errors.New("[NewCoordinator] refresh function is required")
	}

	c := &Coordinator{
		refreshFn: refreshFn,
		timeout:   10 * time.Second,
		log:       zerolog.Nop(),
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// Await returns once a refresh has settled: either the one it starts or the
// one already in flight. A nil return means the store now holds a fresh
// access token and the caller should replay its request.
func (c *Coordinator) Await(ctx context.Context) error {
	c.lock.Lock()
	if c.refreshing {
		waiter := make(chan error, 1)
		c.waiters = append(c.waiters, waiter)
		c.lock.Unlock()

		select {
		case err := <-waiter:
			return err
		case <-ctx.Done():
			// The waiter channel is buffered, so the eventual signal is not
			// lost and the refresh outcome still reaches the store.
			return ctx.Err()
		}
	}

	c.refreshing = true
	c.lock.Unlock()

	// The refresh outcome is shared by every queued waiter, so it must not
	// die with the triggering caller's context. Only the timeout applies.
	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	err := c.refreshFn(refreshCtx)

	c.lock.Lock()
	c.refreshing = false
	waiters := c.waiters
	c.waiters = nil
	c.lock.Unlock()

	if c.onResult != nil {
		c.onResult(err)
	}

	if err != nil {
		c.log.Warn().Err(err).Int("queued", len(waiters)).Msg("token refresh failed")
	} else {
		c.log.Debug().Int("queued", len(waiters)).Msg("token refresh ok")
	}

	for _, waiter := range waiters {
		waiter <- err
	}

	return err
}

// Reset rejects every queued waiter with the given error and clears the
// queue. Called on logout so nothing is left permanently pending.
func (c *Coordinator) Reset(err error) {
	c.lock.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.lock.Unlock()

	for _, waiter := range waiters {
		waiter <- err
	}
}
