package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Scheduler renews the access token on a fixed interval, ahead of expiry,
// independent of request traffic. It runs from login (or session restore)
// until logout or until a renewal attempt fails; genuine expiry after that is
// caught by the request-triggered path.
type Scheduler struct {
	interval time.Duration
	run      Func
	log      zerolog.Logger

	lock    sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewScheduler creates a Scheduler that invokes run every interval. The run
// function is expected to route through the Coordinator so the timer path and
// the request-triggered path share single-flight protection.
func NewScheduler(interval time.Duration, run Func, log zerolog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("[NewScheduler] interval must be positive")
	}
	if run == nil {
		return nil, errors.New("[NewScheduler] run function is required")
	}

	return &Scheduler{
		interval: interval,
		run:      run,
		log:      log,
	}, nil
}

// Start launches the renewal loop. Calling Start while running is a no-op.
func (s *Scheduler) Start() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	go s.loop(ctx)

	s.log.Debug().Dur("interval", s.interval).Msg("proactive refresh started")
}

// Stop halts the renewal loop. Idempotent; safe to call from the loop's own
// renewal function.
func (s *Scheduler) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if !s.running {
		return
	}
	s.cancel()
	s.cancel = nil
	s.running = false
	s.log.Debug().Msg("proactive refresh stopped")
}

// Running reports whether the renewal loop is active.
func (s *Scheduler) Running() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.run(ctx); err != nil {
				// A failed renewal stops the timer; the next 401 goes through
				// the coordinator and decides whether the session is dead.
				s.log.Warn().Err(err).Msg("proactive refresh failed")
				s.Stop()
				return
			}
			s.log.Debug().Msg("proactive refresh ok")
		}
	}
}
