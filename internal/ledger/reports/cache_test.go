package reports

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, ttl), mr
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	tb := TrialBalance{
		AsOf:        time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		TotalDebit:  decimal.NewFromInt(1900),
		TotalCredit: decimal.NewFromInt(1900),
		Balanced:    true,
	}
	require.NoError(t, cache.Set(ctx, "reports:tb:1:2026-03-31", tb))

	var got TrialBalance
	hit, err := cache.Get(ctx, "reports:tb:1:2026-03-31", &got)
	require.NoError(t, err)
	require.True(t, hit)
	require.True(t, got.Balanced)
	require.True(t, got.TotalDebit.Equal(tb.TotalDebit))
}

func TestCacheMiss(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)

	var got TrialBalance
	hit, err := cache.Get(context.Background(), "reports:tb:1:absent", &got)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestCacheEntriesExpire(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "reports:tb:1:2026-03-31", TrialBalance{Balanced: true}))
	mr.FastForward(2 * time.Minute)

	var got TrialBalance
	hit, err := cache.Get(ctx, "reports:tb:1:2026-03-31", &got)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestNilCacheIsNoop(t *testing.T) {
	var cache *Cache
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "k", TrialBalance{}))

	var got TrialBalance
	hit, err := cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.False(t, hit)
}
