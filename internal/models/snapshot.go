package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/types"
)

// Snapshot is the daily aggregate over eligible companies
type Snapshot struct {
	ID                   string              `json:"id" db:"id"`
	Day                  types.SnapshotDay   `json:"date" db:"snapshot_date"`
	TotalReserve         decimal.Decimal     `json:"totalReserve" db:"total_reserve"`
	TotalReserveUSD      decimal.Decimal     `json:"totalReserveUsd" db:"total_reserve_usd"`
	TotalActiveCompanies int                 `json:"totalActiveCompanies" db:"total_active_companies"`
	ReserveDiff          decimal.Decimal     `json:"reserveDiff" db:"reserve_diff"`
	PercentChange        decimal.NullDecimal `json:"percentChange" db:"percent_change"`
	ETHPrice             decimal.Decimal     `json:"ethPrice" db:"eth_price"`
	CreatedAt            time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time           `json:"updatedAt" db:"updated_at"`
}

// SnapshotCompany is one company's reserve record for a day
type SnapshotCompany struct {
	ID                   string              `json:"id" db:"id"`
	CompanyID            string              `json:"companyId" db:"company_id"`
	Day                  types.SnapshotDay   `json:"date" db:"snapshot_date"`
	Reserve              decimal.Decimal     `json:"reserve" db:"reserve"`
	ReserveDiff          decimal.Decimal     `json:"reserveDiff" db:"reserve_diff"`
	PercentChange        decimal.NullDecimal `json:"percentChange" db:"percent_change"`
	MarketCap            decimal.NullDecimal `json:"marketCap" db:"market_cap"`
	SharesOutstanding    decimal.NullDecimal `json:"sharesOutstanding" db:"shares_outstanding"`
	TotalCostAccumulated decimal.NullDecimal `json:"totalCostAccumulated" db:"total_cost_accumulated"`
	CreatedAt            time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time           `json:"updatedAt" db:"updated_at"`
}

// EligibleSnapshotCompany is a day's company row joined with the company's current status
type EligibleSnapshotCompany struct {
	SnapshotCompany
	Status types.CompanyStatus `json:"status"`
}
