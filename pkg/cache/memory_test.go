package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type pending struct {
	Intent string `json:"intent"`
	Qty    int    `json:"qty"`
}

func TestMemoryCacheTypedRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", pending{Intent: "BUY", Qty: 10}, time.Minute))
	var got pending
	require.NoError(t, mc.Get(ctx, "k", &got))
	assert.Equal(t, pending{Intent: "BUY", Qty: 10}, got)
}

func TestMemoryCacheExpiry(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	mc := NewMemoryCache(WithMemoryClock(clk.now))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", "v", time.Second))
	clk.t = clk.t.Add(2 * time.Second)

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
}

func TestMemoryCacheTakeConsumes(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "tok", "x", time.Minute))
	var s string
	require.NoError(t, mc.Take(ctx, "tok", &s))
	assert.Equal(t, "x", s)
	assert.ErrorIs(t, mc.Take(ctx, "tok", &s), ErrCacheMiss)
}

func TestMemoryCachePrefixOps(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	for _, k := range []string{Key("pending", "s1", "a"), Key("pending", "s1", "b"), Key("pending", "s2", "c")} {
		require.NoError(t, mc.Set(ctx, k, 1, time.Minute))
	}
	n, err := mc.CountByPrefix(ctx, "pending:s1:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = mc.DeleteByPrefix(ctx, "pending:s1:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryClock(clk.now))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Hour))
	clk.t = clk.t.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "b", 2, time.Hour))
	clk.t = clk.t.Add(time.Second)

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	clk.t = clk.t.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "c", 3, time.Hour))

	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &v))
}
