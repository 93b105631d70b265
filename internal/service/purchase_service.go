package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/logging"
	"github.com/eth-reserves/internal/metrics"
	"github.com/eth-reserves/internal/models"
	"github.com/eth-reserves/internal/types"
)

// PurchaseStore appends purchases to the ledger
type PurchaseStore interface {
	// CreateAndIncrementReserve inserts the purchase and adds its amount to the
	// company reserve in one transaction, returning the new reserve
	CreateAndIncrementReserve(ctx context.Context, p *models.Purchase) (decimal.Decimal, error)
	ListByCompany(ctx context.Context, companyID string) ([]*models.Purchase, error)
}

// CompanyLookup loads a company with its wallet balance sum
type CompanyLookup interface {
	GetWithWalletSum(ctx context.Context, id string) (*models.CompanyWithWalletSum, error)
}

// Ledger column shapes: amount NUMERIC(38,18), total_cost NUMERIC(38,2)
const (
	amountScale         int32 = 18
	amountIntegerDigits int32 = 20
	costScale           int32 = 2
	costIntegerDigits   int32 = 36
)

// fitsColumn returns why d cannot be stored exactly in a NUMERIC column with
// the given integer digits and scale, or "" when it can
func fitsColumn(d decimal.Decimal, integerDigits, scale int32) string {
	if !d.Equal(d.Truncate(scale)) {
		return fmt.Sprintf("must have at most %d decimal places", scale)
	}
	if d.Abs().GreaterThanOrEqual(decimal.New(1, integerDigits)) {
		return fmt.Sprintf("must be less than 1e%d", integerDigits)
	}
	return ""
}

// PurchaseInput is a purchase submitted by an admin
type PurchaseInput struct {
	CompanyID   string             `json:"companyId" validate:"required,uuid"`
	Amount      decimal.Decimal    `json:"amount" validate:"gt=0"`
	TotalCost   decimal.Decimal    `json:"totalCost" validate:"gt=0"`
	Type        types.PurchaseType `json:"type" validate:"required,oneof=buy yield"`
	PurchasedAt *time.Time         `json:"purchasedAt,omitempty"`
}

// PurchaseResult is the committed purchase with the company's new reserve.
// Snapshot is nil when the same-day snapshot refresh failed.
type PurchaseResult struct {
	Purchase       *models.Purchase        `json:"purchase"`
	CurrentReserve decimal.Decimal         `json:"currentReserve"`
	Snapshot       *models.SnapshotCompany `json:"snapshot,omitempty"`
}

// PurchaseService records purchases and refreshes the company's same-day snapshot
type PurchaseService struct {
	purchases  PurchaseStore
	companies  CompanyLookup
	reconciler *CompanyReconciler
	validate   *validator.Validate
	now        func() time.Time
}

// NewPurchaseService creates a purchase service
func NewPurchaseService(purchases PurchaseStore, companies CompanyLookup, reconciler *CompanyReconciler) *PurchaseService {
	return &PurchaseService{
		purchases:  purchases,
		companies:  companies,
		reconciler: reconciler,
		validate:   newValidator(),
		now:        time.Now,
	}
}

// RecordPurchase validates the input, commits the purchase and reserve increment
// atomically, then refreshes today's snapshot for the company. The refresh is
// best-effort: its failure is logged and does not affect the committed purchase.
func (s *PurchaseService) RecordPurchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError("invalid purchase", err)
	}
	fields := map[string]string{}
	if reason := fitsColumn(input.Amount, amountIntegerDigits, amountScale); reason != "" {
		fields["amount"] = reason
	}
	if reason := fitsColumn(input.TotalCost, costIntegerDigits, costScale); reason != "" {
		fields["totalCost"] = reason
	}
	if len(fields) > 0 {
		return nil, internalerrors.NewValidationError("invalid purchase", fields)
	}

	now := s.now().UTC()
	purchasedAt := now
	if input.PurchasedAt != nil {
		if input.PurchasedAt.After(now) {
			return nil, internalerrors.NewValidationError("invalid purchase",
				map[string]string{"purchasedAt": "cannot be in the future"})
		}
		purchasedAt = input.PurchasedAt.UTC()
	}

	if _, err := s.companies.GetWithWalletSum(ctx, input.CompanyID); err != nil {
		return nil, err
	}

	purchase := &models.Purchase{
		CompanyID:   input.CompanyID,
		Amount:      input.Amount,
		TotalCost:   input.TotalCost,
		Type:        input.Type,
		PurchasedAt: purchasedAt,
	}
	reserve, err := s.purchases.CreateAndIncrementReserve(ctx, purchase)
	if err != nil {
		return nil, err
	}
	metrics.PurchasesRecorded.WithLabelValues(string(input.Type)).Inc()

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"companyId":  input.CompanyID,
		"purchaseId": purchase.ID,
	})
	logger.WithField("reserve", reserve.String()).Info("purchase recorded")

	result := &PurchaseResult{Purchase: purchase, CurrentReserve: reserve}
	snapshot, err := s.refreshSnapshot(ctx, input.CompanyID)
	if err != nil {
		metrics.CompanyReconciliations.WithLabelValues("purchase", "failed").Inc()
		logger.WithError(err).Warn("snapshot refresh after purchase failed")
		return result, nil
	}
	metrics.CompanyReconciliations.WithLabelValues("purchase", "ok").Inc()
	result.Snapshot = snapshot
	return result, nil
}

// refreshSnapshot reruns reconciliation for today; alerts are not raised on this path
func (s *PurchaseService) refreshSnapshot(ctx context.Context, companyID string) (*models.SnapshotCompany, error) {
	company, err := s.companies.GetWithWalletSum(ctx, companyID)
	if err != nil {
		return nil, err
	}
	res, err := s.reconciler.Reconcile(ctx, company, types.DayOf(s.now()))
	if err != nil {
		return nil, err
	}
	return res.Snapshot, nil
}

// ListPurchases returns a company's purchases, newest first
func (s *PurchaseService) ListPurchases(ctx context.Context, companyID string) ([]*models.Purchase, error) {
	if _, err := s.companies.GetWithWalletSum(ctx, companyID); err != nil {
		return nil, err
	}
	return s.purchases.ListByCompany(ctx, companyID)
}
