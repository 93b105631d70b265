package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/types"
)

const providerCoinGecko = "coingecko"

// CoinGeckoClient resolves crypto market data and the ETH/USD price
type CoinGeckoClient struct {
	http *jsonClient
}

// NewCoinGeckoClient creates a CoinGecko client. An empty apiKey uses the public tier.
func NewCoinGeckoClient(apiKey string, cfg HTTPClientConfig) *CoinGeckoClient {
	cfg.Provider = providerCoinGecko
	if apiKey != "" {
		headers := make(map[string]string, len(cfg.Headers)+1)
		for k, v := range cfg.Headers {
			headers[k] = v
		}
		headers["x-cg-demo-api-key"] = apiKey
		cfg.Headers = headers
	}
	return &CoinGeckoClient{http: newJSONClient(cfg)}
}

type coinGeckoMarket struct {
	ID           string              `json:"id"`
	Symbol       string              `json:"symbol"`
	CurrentPrice decimal.NullDecimal `json:"current_price"`
	MarketCap    decimal.NullDecimal `json:"market_cap"`
}

// ResolveCryptoInfo returns the market cap and price of the largest asset listed under symbol
func (c *CoinGeckoClient) ResolveCryptoInfo(ctx context.Context, symbol string) (*types.MarketInfo, error) {
	symbol = strings.ToLower(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, NewAdapterError(providerCoinGecko, "ResolveCryptoInfo", ErrSymbolNotFound, nil)
	}

	var markets []coinGeckoMarket
	err := c.http.getJSON(ctx, "ResolveCryptoInfo", "/coins/markets", map[string]string{
		"vs_currency": "usd",
		"symbols":     symbol,
	}, &markets)
	if err != nil {
		return nil, err
	}

	var best *coinGeckoMarket
	for i := range markets {
		m := &markets[i]
		if !strings.EqualFold(m.Symbol, symbol) {
			continue
		}
		if best == nil || (m.MarketCap.Valid && (!best.MarketCap.Valid || m.MarketCap.Decimal.GreaterThan(best.MarketCap.Decimal))) {
			best = m
		}
	}
	if best == nil {
		return nil, NewAdapterError(providerCoinGecko, "ResolveCryptoInfo", ErrSymbolNotFound, map[string]interface{}{"symbol": symbol})
	}

	return &types.MarketInfo{
		MarketCap: positiveOrNull(best.MarketCap),
		Price:     positiveOrNull(best.CurrentPrice),
	}, nil
}

// ResolveETHUSDPrice returns the current ETH/USD spot price
func (c *CoinGeckoClient) ResolveETHUSDPrice(ctx context.Context) (decimal.Decimal, error) {
	var prices map[string]map[string]decimal.Decimal
	err := c.http.getJSON(ctx, "ResolveETHUSDPrice", "/simple/price", map[string]string{
		"ids":           "ethereum",
		"vs_currencies": "usd",
	}, &prices)
	if err != nil {
		return decimal.Zero, err
	}

	price, ok := prices["ethereum"]["usd"]
	if !ok || !price.IsPositive() {
		return decimal.Zero, NewAdapterError(providerCoinGecko, "ResolveETHUSDPrice",
			fmt.Errorf("%w: no usd price for ethereum", ErrProviderUnavailable), nil)
	}
	return price, nil
}
