package balance

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	orgID, branchID := uuid.New(), uuid.New()

	_, ok := cache.GetTrialBalance(ctx, orgID, branchID, 2025, 6)
	require.False(t, ok)

	tb := TrialBalance{FiscalYear: 2025, FiscalPeriod: 6, TotalDebits: 100, TotalCredits: 100, IsBalanced: true}
	cache.SetTrialBalance(ctx, orgID, branchID, tb)

	got, ok := cache.GetTrialBalance(ctx, orgID, branchID, 2025, 6)
	require.True(t, ok)
	require.Equal(t, tb.TotalDebits, got.TotalDebits)
	require.True(t, got.IsBalanced)
}

func TestCacheBumpInvalidates(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	orgID, branchID := uuid.New(), uuid.New()

	tb := TrialBalance{FiscalYear: 2025, FiscalPeriod: 6}
	cache.SetTrialBalance(ctx, orgID, branchID, tb)
	require.NoError(t, cache.Bump(ctx))

	_, ok := cache.GetTrialBalance(ctx, orgID, branchID, 2025, 6)
	require.False(t, ok)
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	require.NoError(t, cache.Bump(ctx))
	_, ok := cache.GetTrialBalance(ctx, uuid.New(), uuid.New(), 2025, 1)
	require.False(t, ok)
	cache.SetTrialBalance(ctx, uuid.New(), uuid.New(), TrialBalance{})
}
