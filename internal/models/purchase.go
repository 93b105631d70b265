package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/types"
)

// Purchase is an append-only ledger entry increasing a company's reserve
type Purchase struct {
	ID          string             `json:"id" db:"id"`
	CompanyID   string             `json:"companyId" db:"company_id"`
	Amount      decimal.Decimal    `json:"amount" db:"amount"`
	TotalCost   decimal.Decimal    `json:"totalCost" db:"total_cost"`
	Type        types.PurchaseType `json:"type" db:"type"`
	PurchasedAt time.Time          `json:"purchasedAt" db:"purchased_at"`
	CreatedAt   time.Time          `json:"createdAt" db:"created_at"`
}
