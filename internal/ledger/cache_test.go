package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), srv
}

func TestCacheStatementRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	entries := []Entry{
		{ID: 1, CompanyID: 2, Side: SideCustomer, CounterpartyID: 5,
			Type: TypeDebit, Amount: decimal.RequireFromString("400"),
			RunningBalance: decimal.RequireFromString("400"), RefType: RefSale, RefID: 100},
	}

	_, ok := cache.GetStatement(ctx, 2, SideCustomer, 5)
	assert.False(t, ok)

	cache.SetStatement(ctx, 2, SideCustomer, 5, entries)
	got, ok := cache.GetStatement(ctx, 2, SideCustomer, 5)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
	assert.True(t, got[0].Amount.Equal(decimal.RequireFromString("400")))

	// A different counterparty misses.
	_, ok = cache.GetStatement(ctx, 2, SideCustomer, 6)
	assert.False(t, ok)
}

func TestCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.SetStatement(ctx, 2, SideSupplier, 5, []Entry{{ID: 1}})
	cache.Invalidate(ctx, 2, SideSupplier, 5)
	_, ok := cache.GetStatement(ctx, 2, SideSupplier, 5)
	assert.False(t, ok)
}

func TestCacheExpires(t *testing.T) {
	cache, srv := newTestCache(t)
	ctx := context.Background()

	cache.SetStatement(ctx, 2, SideCustomer, 5, []Entry{{ID: 1}})
	srv.FastForward(2 * time.Minute)
	_, ok := cache.GetStatement(ctx, 2, SideCustomer, 5)
	assert.False(t, ok)
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *Cache
	ctx := context.Background()
	_, ok := cache.GetStatement(ctx, 1, SideCustomer, 1)
	assert.False(t, ok)
	cache.SetStatement(ctx, 1, SideCustomer, 1, nil)
	cache.Invalidate(ctx, 1, SideCustomer, 1)
}
