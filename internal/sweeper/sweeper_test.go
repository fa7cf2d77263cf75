package sweeper_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relay-id/authsvc/internal/sweeper"
	"github.com/relay-id/authsvc/internal/tokenstore"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	tokenstore.Store
	sweeps atomic.Int32
}

func (c *countingStore) SweepExpired(ctx context.Context) (int64, error) {
	c.sweeps.Add(1)
	return 0, nil
}

func TestSweeper_StartStop_IsIdempotent(t *testing.T) {
	store := &countingStore{Store: tokenstore.NewFake()}
	s := sweeper.New(store, 50*time.Millisecond, nil)

	s.Start()
	s.Start() // second Start must be a no-op, not a second goroutine

	time.Sleep(200 * time.Millisecond)
	s.Stop()
	s.Stop() // second Stop must be safe

	require.GreaterOrEqual(t, store.sweeps.Load(), int32(1))
}

func TestSweeper_Stop_ReturnsPromptly(t *testing.T) {
	store := &countingStore{Store: tokenstore.NewFake()}
	s := sweeper.New(store, time.Hour, nil) // long interval

	s.Start()
	time.Sleep(10 * time.Millisecond)

	start := time.Now()
	s.Stop()
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestSweeper_StopWithoutStart_IsSafe(t *testing.T) {
	store := &countingStore{Store: tokenstore.NewFake()}
	s := sweeper.New(store, time.Second, nil)
	s.Stop()
}
