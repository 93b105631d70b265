package adapter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/logging"
	"github.com/eth-reserves/internal/metrics"
	"github.com/eth-reserves/internal/storage"
	"github.com/eth-reserves/internal/types"
)

// CachedMarketData serves market data lookups from Redis before calling the providers.
// Only successful lookups are cached; cache errors fall through to the provider.
type CachedMarketData struct {
	equity   EquityResolver
	crypto   CryptoResolver
	price    PriceResolver
	cache    *storage.CacheService
	priceTTL time.Duration
	now      func() time.Time
}

// NewCachedMarketData wraps the resolvers. Market info uses the cache service TTL;
// the ETH price uses priceTTL.
func NewCachedMarketData(equity EquityResolver, crypto CryptoResolver, price PriceResolver, cache *storage.CacheService, priceTTL time.Duration) *CachedMarketData {
	if priceTTL <= 0 {
		priceTTL = time.Minute
	}
	return &CachedMarketData{
		equity:   equity,
		crypto:   crypto,
		price:    price,
		cache:    cache,
		priceTTL: priceTTL,
		now:      time.Now,
	}
}

// ResolveEquityInfo implements EquityResolver
func (c *CachedMarketData) ResolveEquityInfo(ctx context.Context, ticker string) (*types.MarketInfo, error) {
	return c.marketInfo(ctx, types.TrackingEquity, ticker, c.equity.ResolveEquityInfo)
}

// ResolveCryptoInfo implements CryptoResolver
func (c *CachedMarketData) ResolveCryptoInfo(ctx context.Context, symbol string) (*types.MarketInfo, error) {
	return c.marketInfo(ctx, types.TrackingCrypto, symbol, c.crypto.ResolveCryptoInfo)
}

func (c *CachedMarketData) marketInfo(
	ctx context.Context,
	tracking types.MarketCapTracking,
	symbol string,
	fetch func(context.Context, string) (*types.MarketInfo, error),
) (*types.MarketInfo, error) {
	key := c.cache.MarketInfoKey(tracking, symbol)
	logger := logging.FromContext(ctx).WithField("cacheKey", key)

	var cached storage.CachedMarketInfo
	found, err := c.cache.Get(ctx, key, &cached)
	if err != nil {
		logger.WithError(err).Warn("market data cache read failed")
	}
	if found {
		metrics.CacheLookups.WithLabelValues(tracking.String(), "hit").Inc()
		info := cached.Info
		return &info, nil
	}
	metrics.CacheLookups.WithLabelValues(tracking.String(), "miss").Inc()

	info, err := fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, storage.CachedMarketInfo{Info: *info, CachedAt: c.now().UTC()}); err != nil {
		logger.WithError(err).Warn("market data cache write failed")
	}
	return info, nil
}

// ResolveETHUSDPrice implements PriceResolver
func (c *CachedMarketData) ResolveETHUSDPrice(ctx context.Context) (decimal.Decimal, error) {
	key := c.cache.PriceKey("eth", "usd")
	logger := logging.FromContext(ctx).WithField("cacheKey", key)

	var cached storage.CachedPrice
	found, err := c.cache.Get(ctx, key, &cached)
	if err != nil {
		logger.WithError(err).Warn("price cache read failed")
	}
	if found && cached.Price.IsPositive() {
		metrics.CacheLookups.WithLabelValues("price", "hit").Inc()
		return cached.Price, nil
	}
	metrics.CacheLookups.WithLabelValues("price", "miss").Inc()

	price, err := c.price.ResolveETHUSDPrice(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	if err := c.cache.SetWithTTL(ctx, key, storage.CachedPrice{Price: price, CachedAt: c.now().UTC()}, c.priceTTL); err != nil {
		logger.WithError(err).Warn("price cache write failed")
	}
	return price, nil
}
