// Package sweeper runs the single cooperative background worker that
// evicts expired refresh sessions on an interval.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relay-id/authsvc/internal/metrics"
	"github.com/relay-id/authsvc/internal/tokenstore"
)

// Sweeper periodically calls TokenStore.SweepExpired. Start/Stop are
// idempotent and safe to call from multiple goroutines.
type Sweeper struct {
	store    tokenstore.Store
	interval time.Duration
	logger   *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
	done    chan struct{}
}

func New(store tokenstore.Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Start spawns the worker goroutine. A no-op if already running.
func (s *Sweeper) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.run()
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	for s.running.Load() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := s.store.SweepExpired(ctx)
		cancel()
		if err != nil {
			s.logger.Error("sweeper_sweep_failed", "error", err)
		} else if n > 0 {
			metrics.SweptSessions.Add(float64(n))
			s.logger.Info("sweeper_swept_expired_sessions", "count", n)
		}

		s.sleepInSecondTicks()
	}
}

// sleepInSecondTicks decomposes the configured interval into one-second
// checks against the running flag, so Stop returns within ~1s instead of
// waiting out a long interval.
func (s *Sweeper) sleepInSecondTicks() {
	remaining := s.interval
	for remaining > 0 && s.running.Load() {
		step := time.Second
		if remaining < step {
			step = remaining
		}
		select {
		case <-time.After(step):
		case <-s.done:
			return
		}
		remaining -= step
	}
}

// Stop flips the running flag and waits for the worker to exit. Safe to
// call multiple times, including when the worker was never started.
func (s *Sweeper) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.done)
	s.wg.Wait()
}
