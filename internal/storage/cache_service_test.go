package storage

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eth-reserves/internal/types"
)

func setupTestCache(t *testing.T, ttl time.Duration) (*CacheService, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCacheService(NewRedisCacheFromClient(client), ttl), mr
}

func TestCacheService_Keys(t *testing.T) {
	c, _ := setupTestCache(t, time.Minute)

	assert.Equal(t, "price:eth:usd", c.PriceKey("ETH", "USD"))
	assert.Equal(t, "equity:btcs", c.MarketInfoKey(types.TrackingEquity, "BTCS"))
	assert.Equal(t, "crypto:eth", c.MarketInfoKey(types.TrackingCrypto, "ETH"))
	assert.Equal(t, "snapshot:latest", c.LatestSnapshotKey())
}

func TestCacheService_SetGet(t *testing.T) {
	c, _ := setupTestCache(t, time.Minute)
	ctx := testContext(t)

	want := CachedMarketInfo{
		Info: types.MarketInfo{
			MarketCap:         decimal.NewNullDecimal(decimal.RequireFromString("1234567.89")),
			SharesOutstanding: decimal.NewNullDecimal(decimal.NewFromInt(1000)),
		},
		CachedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.Set(ctx, "equity:sbet", want))

	var got CachedMarketInfo
	found, err := c.Get(ctx, "equity:sbet", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, want.Info.MarketCap.Decimal.Equal(got.Info.MarketCap.Decimal))
	assert.True(t, got.Info.SharesOutstanding.Valid)
}

func TestCacheService_Miss(t *testing.T) {
	c, _ := setupTestCache(t, time.Minute)

	var got CachedPrice
	found, err := c.Get(testContext(t), "price:eth:usd", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheService_Expiry(t *testing.T) {
	c, mr := setupTestCache(t, 30*time.Second)
	ctx := testContext(t)

	require.NoError(t, c.Set(ctx, "price:eth:usd", CachedPrice{Price: decimal.NewFromInt(3000)}))
	mr.FastForward(31 * time.Second)

	var got CachedPrice
	found, err := c.Get(ctx, "price:eth:usd", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheService_Invalidate(t *testing.T) {
	c, mr := setupTestCache(t, time.Minute)
	ctx := testContext(t)

	require.NoError(t, c.Set(ctx, "snapshot:latest", map[string]string{"a": "b"}))
	require.NoError(t, c.Invalidate(ctx, "snapshot:latest"))
	assert.False(t, mr.Exists("snapshot:latest"))
	assert.NoError(t, c.Invalidate(ctx))
}

func TestCacheService_CorruptValue(t *testing.T) {
	c, mr := setupTestCache(t, time.Minute)
	require.NoError(t, mr.Set("price:eth:usd", "not-json"))

	var got CachedPrice
	_, err := c.Get(testContext(t), "price:eth:usd", &got)
	assert.Error(t, err)
}
