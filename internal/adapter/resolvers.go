// Package adapter provides the external collaborators of the snapshot pipeline:
// on-chain balance resolution, market data lookups, and alert notification.
package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/types"
)

// BalanceResolver resolves the ETH-equivalent holdings of an address across networks
type BalanceResolver interface {
	// ResolveBalance returns the summed balance over every reachable network.
	// It fails only when no network could be queried.
	ResolveBalance(ctx context.Context, address string) (decimal.Decimal, error)
}

// EquityResolver resolves market capitalization for an exchange-listed ticker
type EquityResolver interface {
	ResolveEquityInfo(ctx context.Context, ticker string) (*types.MarketInfo, error)
}

// CryptoResolver resolves market capitalization for a crypto asset symbol
type CryptoResolver interface {
	ResolveCryptoInfo(ctx context.Context, symbol string) (*types.MarketInfo, error)
}

// PriceResolver resolves the current ETH/USD price
type PriceResolver interface {
	ResolveETHUSDPrice(ctx context.Context) (decimal.Decimal, error)
}

// Notifier delivers reserve change alerts
type Notifier interface {
	SendChangeAlert(ctx context.Context, event types.AlertEvent) error
}

var (
	// ErrProviderUnavailable indicates the data provider is unavailable
	ErrProviderUnavailable = errors.New("data provider unavailable")

	// ErrProviderRateLimit indicates the provider rate limit was exceeded
	ErrProviderRateLimit = errors.New("provider rate limit exceeded")

	// ErrProviderTimeout indicates the provider request timed out
	ErrProviderTimeout = errors.New("provider request timeout")

	// ErrSymbolNotFound indicates the provider has no listing for the symbol
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrNoNetworks indicates every network failed or none were configured
	ErrNoNetworks = errors.New("no network returned a balance")
)

// AdapterError wraps errors with the provider and operation that failed
type AdapterError struct {
	Provider string
	Op       string
	Err      error
	Details  map[string]interface{}
}

func (e *AdapterError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("adapter error [%s:%s]: %v (details: %+v)", e.Provider, e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("adapter error [%s:%s]: %v", e.Provider, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// ProviderName returns the provider that failed
func (e *AdapterError) ProviderName() string {
	return e.Provider
}

// Timeout reports whether the provider call ran past its deadline
func (e *AdapterError) Timeout() bool {
	return errors.Is(e.Err, ErrProviderTimeout) || errors.Is(e.Err, context.DeadlineExceeded)
}

// RateLimited reports whether the provider rejected the call for rate limiting
func (e *AdapterError) RateLimited() bool {
	return errors.Is(e.Err, ErrProviderRateLimit)
}

// NewAdapterError creates a new AdapterError
func NewAdapterError(provider, op string, err error, details map[string]interface{}) *AdapterError {
	return &AdapterError{
		Provider: provider,
		Op:       op,
		Err:      err,
		Details:  details,
	}
}
