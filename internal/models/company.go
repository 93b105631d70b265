// Package models provides data models for the reserve tracker.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/types"
)

// Company represents an institution whose ETH reserve is tracked
type Company struct {
	ID                  string               `json:"id" db:"id"`
	Name                string               `json:"name" db:"name"`
	Category            string               `json:"category" db:"category"`
	SecondaryCategories []string             `json:"secondaryCategories" db:"secondary_categories"`
	Ticker              string               `json:"ticker,omitempty" db:"ticker"`
	AccountingType      types.AccountingType `json:"accountingType" db:"accounting_type"`
	MarketCapTracking   string               `json:"marketCapTracking,omitempty" db:"market_cap_tracking"`
	Status              types.CompanyStatus  `json:"status" db:"status"`
	CurrentReserve      decimal.Decimal      `json:"currentReserve" db:"current_reserve"`
	Website             string               `json:"website,omitempty" db:"website"`
	CreatedAt           time.Time            `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time            `json:"updatedAt" db:"updated_at"`
}

// Tracking returns the market data source for the company
func (c *Company) Tracking() types.MarketCapTracking {
	return types.ParseMarketCapTracking(c.MarketCapTracking)
}

// CompanyWithWalletSum pairs a company with the sum of its cached wallet balances.
// WalletSum is invalid when the company has no wallets.
type CompanyWithWalletSum struct {
	Company
	WalletSum decimal.NullDecimal `json:"walletSum"`
}

// CompanyWallet is an on-chain address attributed to a company.
// Balance is a cache refreshed by the wallet worker, not a historical record.
type CompanyWallet struct {
	ID            string          `json:"id" db:"id"`
	CompanyID     string          `json:"companyId" db:"company_id"`
	Address       string          `json:"address" db:"address"`
	Label         string          `json:"label,omitempty" db:"label"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	AutoScan      bool            `json:"autoScan" db:"auto_scan"`
	LastScannedAt *time.Time      `json:"lastScannedAt,omitempty" db:"last_scanned_at"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}
