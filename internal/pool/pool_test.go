package pool_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/relay-id/authsvc/internal/pool"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id    int
	valid atomic.Bool
}

func (c *fakeConn) Valid() bool { return c.valid.Load() }
func (c *fakeConn) Close()      { c.valid.Store(false) }

func newFakeFactory() (pool.Factory[*fakeConn], *atomic.Int32) {
	var next atomic.Int32
	factory := func(ctx context.Context) (*fakeConn, error) {
		id := int(next.Add(1))
		c := &fakeConn{id: id}
		c.valid.Store(true)
		return c, nil
	}
	return factory, &next
}

func TestPool_AcquireReleaseRoundTrip(t *testing.T) {
	factory, _ := newFakeFactory()
	p, err := pool.New(context.Background(), 2, factory, nil)
	require.NoError(t, err)

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, lease.Conn().Valid())
	require.Equal(t, 1, p.InUse())

	lease.Release()
	require.Equal(t, 0, p.InUse())
}

func TestPool_ReleaseIsIdempotent(t *testing.T) {
	factory, _ := newFakeFactory()
	p, err := pool.New(context.Background(), 1, factory, nil)
	require.NoError(t, err)

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)

	lease.Release()
	lease.Release()
	require.Equal(t, 0, p.InUse())

	// The slot must still be usable after a double release.
	lease2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	lease2.Release()
}

func TestPool_NeverExceedsConfiguredSize(t *testing.T) {
	factory, _ := newFakeFactory()
	p, err := pool.New(context.Background(), 3, factory, nil)
	require.NoError(t, err)

	leases := make([]*pool.Lease[*fakeConn], 0, 3)
	for i := 0; i < 3; i++ {
		l, err := p.Acquire(context.Background())
		require.NoError(t, err)
		leases = append(leases, l)
	}
	require.Equal(t, 3, p.InUse())

	// A fourth acquire must block until timeout since the pool is exhausted.
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	_, err = p.Acquire(ctx)
	require.Error(t, err)

	for _, l := range leases {
		l.Release()
	}
	require.Equal(t, 0, p.InUse())
}

func TestPool_ReleaseRebuildsInvalidConnection(t *testing.T) {
	factory, _ := newFakeFactory()
	p, err := pool.New(context.Background(), 1, factory, nil)
	require.NoError(t, err)

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	lease.Conn().Close() // simulate a dead connection
	lease.Release()

	lease2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, lease2.Conn().Valid())
	lease2.Release()
}

func TestPool_ConcurrentAcquireRelease(t *testing.T) {
	factory, _ := newFakeFactory()
	p, err := pool.New(context.Background(), 4, factory, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := p.Acquire(context.Background())
			if err != nil {
				return
			}
			defer lease.Release()
			require.LessOrEqual(t, p.InUse(), 4)
		}()
	}
	wg.Wait()
	require.Equal(t, 0, p.InUse())
}
