// Package types provides common type definitions for the reserve tracker.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// CompanyStatus represents the lifecycle state of a tracked company
type CompanyStatus string

const (
	// CompanyStatusActive represents a company included in public aggregates
	CompanyStatusActive CompanyStatus = "ACTIVE"
	// CompanyStatusPending represents a company still under review; snapshotted but never aggregated
	CompanyStatusPending CompanyStatus = "PENDING"
	// CompanyStatusInactive represents a company excluded from daily snapshots
	CompanyStatusInactive CompanyStatus = "INACTIVE"
)

// IsValid reports whether s is a known status
func (s CompanyStatus) IsValid() bool {
	switch s {
	case CompanyStatusActive, CompanyStatusPending, CompanyStatusInactive:
		return true
	}
	return false
}

// AccountingType represents where a company's reserve figure comes from
type AccountingType string

const (
	// AccountingSelfReported represents reserves declared by the company
	AccountingSelfReported AccountingType = "SELF_REPORTED"
	// AccountingPublicReports represents reserves taken from public filings
	AccountingPublicReports AccountingType = "PUBLIC_REPORTS"
	// AccountingWalletTracking represents reserves derived from on-chain wallet balances
	AccountingWalletTracking AccountingType = "WALLET_TRACKING"
)

// IsValid reports whether a is a known accounting type
func (a AccountingType) IsValid() bool {
	switch a {
	case AccountingSelfReported, AccountingPublicReports, AccountingWalletTracking:
		return true
	}
	return false
}

// PurchaseType represents the kind of reserve increase
type PurchaseType string

const (
	// PurchaseTypeBuy represents ETH acquired with cash
	PurchaseTypeBuy PurchaseType = "buy"
	// PurchaseTypeYield represents ETH received as staking or protocol yield
	PurchaseTypeYield PurchaseType = "yield"
)

// MarketCapTracking selects the market data source used to enrich a company snapshot
type MarketCapTracking int

const (
	// TrackingNone disables enrichment
	TrackingNone MarketCapTracking = iota
	// TrackingEquity resolves market cap and shares outstanding from an equity quote
	TrackingEquity
	// TrackingCrypto resolves market cap from a crypto asset listing
	TrackingCrypto
)

// Stored values of the market cap tracking column
const (
	MarketCapTrackingEquityLabel = "Public Listing"
	MarketCapTrackingCryptoLabel = "Crypto"
)

// ParseMarketCapTracking maps the stored tracking label to a tracking mode.
// Unrecognized labels, including the empty string, map to TrackingNone.
func ParseMarketCapTracking(label string) MarketCapTracking {
	switch label {
	case MarketCapTrackingEquityLabel:
		return TrackingEquity
	case MarketCapTrackingCryptoLabel:
		return TrackingCrypto
	default:
		return TrackingNone
	}
}

// String returns the provider name used in logs and metrics
func (m MarketCapTracking) String() string {
	switch m {
	case TrackingEquity:
		return "equity"
	case TrackingCrypto:
		return "crypto"
	default:
		return "none"
	}
}

// MarketInfo is the normalized result of a market data lookup.
// SharesOutstanding is never set for crypto listings; Price is only set for them.
type MarketInfo struct {
	MarketCap         decimal.NullDecimal `json:"marketCap"`
	SharesOutstanding decimal.NullDecimal `json:"sharesOutstanding"`
	Price             decimal.NullDecimal `json:"price"`
}

// AlertEvent describes a reserve change large enough to notify operators about
type AlertEvent struct {
	CompanyID     string              `json:"companyId"`
	CompanyName   string              `json:"companyName"`
	Ticker        string              `json:"ticker,omitempty"`
	Day           SnapshotDay         `json:"day"`
	PrevReserve   decimal.Decimal     `json:"prevReserve"`
	NewReserve    decimal.Decimal     `json:"newReserve"`
	ReserveDiff   decimal.Decimal     `json:"reserveDiff"`
	PercentChange decimal.NullDecimal `json:"percentChange"`
	DetectedAt    time.Time           `json:"detectedAt"`
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
