package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laststock/internal/pkg/cache"
)

func TestMemoryClient_GetSet(t *testing.T) {
	c := cache.NewMemoryClient()
	ctx := context.Background()

	_, err := c.Get(ctx, "k")
	assert.Equal(t, cache.ErrCacheMiss, err)

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestMemoryClient_SetNXDoesNotOverwrite(t *testing.T) {
	c := cache.NewMemoryClient()
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "k", "primeiro", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "k", "segundo", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	v, _ := c.Get(ctx, "k")
	assert.Equal(t, "primeiro", v)
}

func TestMemoryClient_HitCountsWithinWindow(t *testing.T) {
	c := cache.NewMemoryClient()
	ctx := context.Background()

	n, ttl, err := c.Hit(ctx, "rate", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, time.Minute, ttl)

	n, ttl, err = c.Hit(ctx, "rate", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.True(t, ttl > 0 && ttl <= time.Minute)
}

func TestMemoryClient_Expiration(t *testing.T) {
	c := cache.NewMemoryClient()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Nanosecond))
	time.Sleep(2 * time.Millisecond)
	_, err := c.Get(ctx, "k")
	assert.Equal(t, cache.ErrCacheMiss, err)

	_, _, err = c.Hit(ctx, "janela", time.Nanosecond)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	n, _, err := c.Hit(ctx, "janela", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
