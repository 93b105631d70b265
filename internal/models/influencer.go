package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Influencer is a publicly known individual ETH holder listed alongside companies
type Influencer struct {
	ID          string              `json:"id" db:"id"`
	Name        string              `json:"name" db:"name"`
	Handle      string              `json:"handle" db:"handle"`
	Platform    string              `json:"platform" db:"platform"`
	Followers   int64               `json:"followers" db:"followers"`
	ETHHoldings decimal.NullDecimal `json:"ethHoldings" db:"eth_holdings"`
	Notes       string              `json:"notes,omitempty" db:"notes"`
	CreatedAt   time.Time           `json:"createdAt" db:"created_at"`
}

// Admin is an operator allowed to call elevated endpoints
type Admin struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
