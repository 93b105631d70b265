package service

import (
	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/config"
	"github.com/eth-reserves/internal/models"
	"github.com/eth-reserves/internal/types"
)

var hundred = decimal.NewFromInt(100)

// Thresholds holds the reserve rules applied by reconciliation
type Thresholds struct {
	// Eligibility is the reserve a company must strictly exceed to count toward the aggregate
	Eligibility decimal.Decimal
	// AlertAbsolute fires an alert when the reserve diff reaches it
	AlertAbsolute decimal.Decimal
	// AlertPercent fires an alert when |percent change| strictly exceeds it
	AlertPercent decimal.Decimal
	// OverwriteDelta is how far a same-day rerun must move the reserve before it may alert again
	OverwriteDelta decimal.Decimal
}

// DefaultThresholds returns the production thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		Eligibility:    decimal.NewFromInt(100),
		AlertAbsolute:  decimal.NewFromInt(50),
		AlertPercent:   decimal.NewFromInt(1),
		OverwriteDelta: decimal.NewFromInt(10),
	}
}

// ThresholdsFromConfig reads the thresholds from the snapshot configuration
func ThresholdsFromConfig(cfg config.SnapshotConfig) Thresholds {
	return Thresholds{
		Eligibility:    cfg.EligibilityThreshold,
		AlertAbsolute:  cfg.AlertAbsoluteThreshold,
		AlertPercent:   cfg.AlertPercentThreshold,
		OverwriteDelta: cfg.OverwriteAlertDelta,
	}
}

// PercentChange returns ((current - previous) / previous) * 100 rounded to two places.
// It is null when previous is zero or negative.
func PercentChange(current, previous decimal.Decimal) decimal.NullDecimal {
	if !previous.IsPositive() {
		return decimal.NullDecimal{}
	}
	pct := current.Sub(previous).Div(previous).Mul(hundred).Round(2)
	return decimal.NewNullDecimal(pct)
}

// IsAggregateEligible reports whether a company row counts toward the daily aggregate
func (t Thresholds) IsAggregateEligible(status types.CompanyStatus, reserve decimal.Decimal) bool {
	return status == types.CompanyStatusActive && reserve.GreaterThan(t.Eligibility)
}

// CrossesAlertThreshold reports whether a change is large enough to notify about
func (t Thresholds) CrossesAlertThreshold(diff decimal.Decimal, pct decimal.NullDecimal) bool {
	if pct.Valid && pct.Decimal.Abs().GreaterThan(t.AlertPercent) {
		return true
	}
	return diff.GreaterThanOrEqual(t.AlertAbsolute)
}

// ShouldAlert applies the alert gate to an upsert. existing is the row for the
// same day before the write, or nil when the row is new.
func (t Thresholds) ShouldAlert(existing *models.SnapshotCompany, newReserve, diff decimal.Decimal, pct decimal.NullDecimal) bool {
	if existing != nil && !existing.Reserve.Sub(newReserve).Abs().GreaterThan(t.OverwriteDelta) {
		return false
	}
	return t.CrossesAlertThreshold(diff, pct)
}

// SelectReserve returns the authoritative reserve for a company: the wallet sum
// for wallet-tracked companies that have one, else the manual reserve
func SelectReserve(c *models.CompanyWithWalletSum) decimal.Decimal {
	if c.AccountingType == types.AccountingWalletTracking && c.WalletSum.Valid {
		return c.WalletSum.Decimal
	}
	return c.CurrentReserve
}

// PreviousReserve resolves the baseline reserve: the latest prior snapshot,
// else the manual reserve, else zero
func PreviousReserve(prior *models.SnapshotCompany, company *models.Company) decimal.Decimal {
	if prior != nil {
		return prior.Reserve
	}
	if company != nil {
		return company.CurrentReserve
	}
	return decimal.Zero
}
