// Package sqlconn adapts a raw *pgx.Conn to the pool.Conn constraint so the
// generic pool in internal/pool can manage the relational store's
// connections directly, instead of layering it on top of pgxpool's own
// (separate) pooling implementation.
package sqlconn

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Conn wraps a *pgx.Conn with the Valid()/Close() contract internal/pool
// requires.
type Conn struct {
	*pgx.Conn
}

// Valid pings the connection with a short deadline. A connection that has
// gone stale (server restart, network blip) reports invalid so the pool
// rebuilds it before handing it to a caller.
func (c *Conn) Valid() bool {
	if c.Conn == nil || c.Conn.IsClosed() {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.Conn.Ping(ctx) == nil
}

// Close releases the underlying connection. Errors are not actionable here
// since the connection is being discarded regardless.
func (c *Conn) Close() {
	if c.Conn == nil {
		return
	}
	_ = c.Conn.Close(context.Background())
}

// Factory builds a pool.Factory[*Conn] bound to dsn. Connection
// establishment is retried up to maxRetries times with linear backoff;
// query-level retries stay the caller's responsibility.
func Factory(dsn string, maxRetries int, retryInterval time.Duration) func(ctx context.Context) (*Conn, error) {
	return func(ctx context.Context) (*Conn, error) {
		var lastErr error
		attempts := maxRetries + 1
		if attempts < 1 {
			attempts = 1
		}
		for attempt := 0; attempt < attempts; attempt++ {
			conn, err := pgx.Connect(ctx, dsn)
			if err == nil {
				return &Conn{Conn: conn}, nil
			}
			lastErr = err
			if attempt < attempts-1 {
				select {
				case <-time.After(retryInterval * time.Duration(attempt+1)):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
		}
		return nil, lastErr
	}
}
