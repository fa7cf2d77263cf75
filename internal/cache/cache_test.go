package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/relay-id/authsvc/internal/apperr"
	"github.com/relay-id/authsvc/internal/cache"
	"github.com/stretchr/testify/require"
)

func TestFake_SetWithTtl_RejectsNonPositiveTtl(t *testing.T) {
	c := cache.NewFake()
	ctx := context.Background()

	err := c.SetWithTtl(ctx, "k", "v", 0)
	require.Error(t, err)
	require.Equal(t, apperr.InvalidArgument, apperr.CodeOf(err))

	err = c.SetWithTtl(ctx, "k", "v", -time.Second)
	require.Error(t, err)

	_, err = c.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestFake_GetMissingKey_ReturnsErrNotFound(t *testing.T) {
	c := cache.NewFake()
	_, err := c.Get(context.Background(), "nope")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestFake_SetWithTtl_ExpiresKey(t *testing.T) {
	c := cache.NewFake()
	ctx := context.Background()
	require.NoError(t, c.SetWithTtl(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrNotFound)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFake_Incr_StartsAtOne(t *testing.T) {
	c := cache.NewFake()
	ctx := context.Background()

	n, err := c.Incr(ctx, "counter")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = c.Incr(ctx, "counter")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestFake_HashOperations(t *testing.T) {
	c := cache.NewFake()
	ctx := context.Background()

	require.NoError(t, c.HSet(ctx, "h", "f1", "v1"))
	require.NoError(t, c.HSet(ctx, "h", "f2", "v2"))

	v, err := c.HGet(ctx, "h", "f1")
	require.NoError(t, err)
	require.Equal(t, "v1", v)

	all, err := c.HGetAll(ctx, "h")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"f1": "v1", "f2": "v2"}, all)

	require.NoError(t, c.HDel(ctx, "h", "f1"))
	_, err = c.HGet(ctx, "h", "f1")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestFake_FailNext_SurfacesServiceUnavailable(t *testing.T) {
	c := cache.NewFake()
	ctx := context.Background()
	c.FailNext = true

	err := c.Set(ctx, "k", "v")
	require.Error(t, err)
	require.Equal(t, apperr.ServiceUnavailable, apperr.CodeOf(err))

	// FailNext is single-shot; the retry succeeds.
	require.NoError(t, c.Set(ctx, "k", "v"))
}

func TestFake_Del_RemovesStringAndHash(t *testing.T) {
	c := cache.NewFake()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v"))
	require.NoError(t, c.HSet(ctx, "k", "f", "v"))

	require.NoError(t, c.Del(ctx, "k"))

	_, err := c.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrNotFound)
	_, err = c.HGet(ctx, "k", "f")
	require.ErrorIs(t, err, cache.ErrNotFound)
}
