package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/types"
)

// CacheService provides JSON caching of market data lookups on top of Redis
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyPrice is for asset prices
	CacheKeyPrice CacheKeyType = "price"
	// CacheKeyEquity is for equity quotes
	CacheKeyEquity CacheKeyType = "equity"
	// CacheKeyCrypto is for crypto listings
	CacheKeyCrypto CacheKeyType = "crypto"
	// CacheKeyLatestSnapshot is for the latest aggregate served by the API
	CacheKeyLatestSnapshot CacheKeyType = "snapshot"
)

// GenerateCacheKey generates a cache key for a given type and parameters
// Format: <type>:<param1>:<param2>:...
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, string(keyType))
	for _, param := range params {
		parts = append(parts, strings.ToLower(param))
	}
	return strings.Join(parts, ":")
}

// PriceKey returns price:<asset>:<quote>
func (c *CacheService) PriceKey(asset, quote string) string {
	return c.GenerateCacheKey(CacheKeyPrice, asset, quote)
}

// MarketInfoKey returns equity:<ticker> or crypto:<symbol>
func (c *CacheService) MarketInfoKey(tracking types.MarketCapTracking, symbol string) string {
	if tracking == types.TrackingCrypto {
		return c.GenerateCacheKey(CacheKeyCrypto, symbol)
	}
	return c.GenerateCacheKey(CacheKeyEquity, symbol)
}

// LatestSnapshotKey returns snapshot:latest
func (c *CacheService) LatestSnapshotKey() string {
	return c.GenerateCacheKey(CacheKeyLatestSnapshot, "latest")
}

// Set stores a value in cache with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores a value in cache with a custom TTL
func (c *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.redis.Set(ctx, key, data, ttl)
}

// Get retrieves a value from cache and deserializes it.
// A miss returns (false, nil).
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// Invalidate removes one or more keys from cache
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}

// GetTTL returns the configured TTL for this cache service
func (c *CacheService) GetTTL() time.Duration {
	return c.ttl
}

// CachedPrice is the cached form of a price lookup
type CachedPrice struct {
	Price    decimal.Decimal `json:"price"`
	CachedAt time.Time       `json:"cachedAt"`
}

// CachedMarketInfo is the cached form of a market info lookup
type CachedMarketInfo struct {
	Info     types.MarketInfo `json:"info"`
	CachedAt time.Time        `json:"cachedAt"`
}
