package adapter

import (
	"context"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/types"
)

const providerFMP = "fmp"

// FMPClient resolves equity market data from Financial Modeling Prep
type FMPClient struct {
	http   *jsonClient
	apiKey string
}

// NewFMPClient creates an FMP client. cfg.Provider is set to "fmp".
func NewFMPClient(apiKey string, cfg HTTPClientConfig) *FMPClient {
	cfg.Provider = providerFMP
	return &FMPClient{
		http:   newJSONClient(cfg),
		apiKey: apiKey,
	}
}

type fmpQuote struct {
	Symbol            string              `json:"symbol"`
	Price             decimal.NullDecimal `json:"price"`
	MarketCap         decimal.NullDecimal `json:"marketCap"`
	SharesOutstanding decimal.NullDecimal `json:"sharesOutstanding"`
}

// ResolveEquityInfo returns market cap and shares outstanding for ticker
func (c *FMPClient) ResolveEquityInfo(ctx context.Context, ticker string) (*types.MarketInfo, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, NewAdapterError(providerFMP, "ResolveEquityInfo", ErrSymbolNotFound, nil)
	}

	var quotes []fmpQuote
	err := c.http.getJSON(ctx, "ResolveEquityInfo", "/quote/"+url.PathEscape(ticker), map[string]string{
		"apikey": c.apiKey,
	}, &quotes)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, NewAdapterError(providerFMP, "ResolveEquityInfo", ErrSymbolNotFound, map[string]interface{}{"ticker": ticker})
	}

	q := quotes[0]
	return &types.MarketInfo{
		MarketCap:         positiveOrNull(q.MarketCap),
		SharesOutstanding: positiveOrNull(q.SharesOutstanding),
	}, nil
}

// positiveOrNull treats zero and negative provider values as missing
func positiveOrNull(v decimal.NullDecimal) decimal.NullDecimal {
	if !v.Valid || !v.Decimal.IsPositive() {
		return decimal.NullDecimal{}
	}
	return v
}
