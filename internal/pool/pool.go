// Package pool implements a bounded, blocking-acquire connection pool
// over a generic connection factory, using a buffered channel as the idle
// queue and a Lease that guarantees release on every exit path.
package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/relay-id/authsvc/internal/apperr"
)

// acquireTimeout bounds every Acquire regardless of the caller's own
// deadline, protecting the pool under bursty load.
const acquireTimeout = 5 * time.Second

// Conn is the contract a pooled connection type must satisfy.
type Conn interface {
	// Valid reports whether the connection is still usable.
	Valid() bool
	// Close releases any underlying resource. Called when a connection is
	// discarded rather than returned to the idle queue.
	Close()
}

// Factory creates a new connection of type T.
type Factory[T Conn] func(ctx context.Context) (T, error)

// Pool is a fixed-size, blocking-acquire pool over connections of type T.
type Pool[T Conn] struct {
	factory Factory[T]
	size    int
	logger  *slog.Logger

	mu   sync.Mutex
	idle []T
	sema chan struct{} // one token per outstanding lease slot
}

// New creates a pool of size connections, eagerly built via factory.
// A factory failure during warm-up is fatal: the pool has no background
// refill, so it cannot recover a slot lost before serving has started.
func New[T Conn](ctx context.Context, size int, factory Factory[T], logger *slog.Logger) (*Pool[T], error) {
	if size <= 0 {
		return nil, apperr.New(apperr.InvalidArgument, "pool size must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool[T]{
		factory: factory,
		size:    size,
		logger:  logger,
		idle:    make([]T, 0, size),
		sema:    make(chan struct{}, size),
	}

	for i := 0; i < size; i++ {
		conn, err := factory(ctx)
		if err != nil {
			return nil, apperr.Newf(apperr.ServiceUnavailable, "pool warm-up failed: %v", err)
		}
		p.idle = append(p.idle, conn)
	}
	for i := 0; i < size; i++ {
		p.sema <- struct{}{}
	}

	return p, nil
}

// Lease holds a single connection checked out of the pool. It guarantees
// release on every exit path, including panics, via a deferred Release
// call by the caller — Release itself is idempotent.
type Lease[T Conn] struct {
	pool *Pool[T]
	conn T
	once sync.Once
}

// Conn returns the leased connection.
func (l *Lease[T]) Conn() T {
	return l.conn
}

// Release returns the connection to the pool. Safe to call more than once
// and safe to call from a deferred panic-recovery path.
func (l *Lease[T]) Release() {
	l.once.Do(func() {
		l.pool.release(l.conn)
	})
}

// Acquire blocks up to acquireTimeout for an idle connection. If the
// connection handed out is no longer Valid, it is rebuilt via the factory
// before being returned — the pool never hands out a known-dead connection.
func (p *Pool[T]) Acquire(ctx context.Context) (*Lease[T], error) {
	acqCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	select {
	case <-p.sema:
	case <-acqCtx.Done():
		return nil, apperr.New(apperr.ServiceUnavailable, "pool acquire timed out")
	}

	conn, ok := p.popIdle()
	if !ok {
		// Semaphore says a slot is free but the idle queue is momentarily
		// empty (a concurrent Release is mid-flight); rebuild rather than
		// block further, to honor the 5s acquire bound.
		built, err := p.factory(acqCtx)
		if err != nil {
			p.sema <- struct{}{}
			return nil, apperr.Newf(apperr.ServiceUnavailable, "pool rebuild failed: %v", err)
		}
		conn = built
	}

	if !conn.Valid() {
		conn.Close()
		rebuilt, err := p.factory(acqCtx)
		if err != nil {
			p.sema <- struct{}{}
			return nil, apperr.Newf(apperr.ServiceUnavailable, "pool rebuild failed: %v", err)
		}
		conn = rebuilt
	}

	return &Lease[T]{pool: p, conn: conn}, nil
}

func (p *Pool[T]) popIdle() (conn T, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.idle) == 0 {
		return conn, false
	}
	n := len(p.idle) - 1
	conn = p.idle[n]
	p.idle = p.idle[:n]
	return conn, true
}

// release returns conn to the idle queue, rebuilding it first if it is
// nil or invalid. A rebuild failure is logged and the slot is dropped,
// permanently shrinking the pool.
// TODO: schedule a background re-fill so repeated rebuild failures cannot
// shrink capacity for the remaining process lifetime.
func (p *Pool[T]) release(conn T) {
	if !conn.Valid() {
		conn.Close()
		rebuilt, err := p.factory(context.Background())
		if err != nil {
			p.logger.Error("pool_release_rebuild_failed", "error", err)
			// slot dropped: do not return the semaphore token.
			return
		}
		conn = rebuilt
	}

	p.mu.Lock()
	p.idle = append(p.idle, conn)
	p.mu.Unlock()

	p.sema <- struct{}{}
}

// InUse returns the number of leases currently outstanding.
func (p *Pool[T]) InUse() int {
	return p.size - len(p.sema)
}

// Size returns the pool's configured capacity.
func (p *Pool[T]) Size() int {
	return p.size
}

// Close closes every idle connection. Outstanding leases are unaffected.
// The pool keeps no closed state: a lease released after Close puts its
// connection back in the idle queue, where it stays open.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.idle {
		c.Close()
	}
	p.idle = nil
}
