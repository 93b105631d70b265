package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/adapter"
	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/logging"
	"github.com/eth-reserves/internal/models"
	"github.com/eth-reserves/internal/types"
)

// CompanySnapshotStore persists per-company daily snapshots
type CompanySnapshotStore interface {
	GetCompanySnapshot(ctx context.Context, companyID string, day types.SnapshotDay) (*models.SnapshotCompany, error)
	LatestCompanySnapshotBefore(ctx context.Context, companyID string, day types.SnapshotDay) (*models.SnapshotCompany, error)
	UpsertCompanySnapshot(ctx context.Context, s *models.SnapshotCompany) error
}

// PurchaseCostSource sums a company's purchase costs
type PurchaseCostSource interface {
	SumTotalCost(ctx context.Context, companyID string) (decimal.NullDecimal, error)
}

// ReconcileResult is the outcome of reconciling one company for one day
type ReconcileResult struct {
	Snapshot *models.SnapshotCompany
	Created  bool
	Alert    *types.AlertEvent
}

// CompanyReconciler computes and writes one company's snapshot for a day
type CompanyReconciler struct {
	snapshots       CompanySnapshotStore
	purchases       PurchaseCostSource
	equity          adapter.EquityResolver
	crypto          adapter.CryptoResolver
	thresholds      Thresholds
	providerTimeout time.Duration
	now             func() time.Time
}

// NewCompanyReconciler creates a reconciler. providerTimeout bounds each market data lookup.
func NewCompanyReconciler(
	snapshots CompanySnapshotStore,
	purchases PurchaseCostSource,
	equity adapter.EquityResolver,
	crypto adapter.CryptoResolver,
	thresholds Thresholds,
	providerTimeout time.Duration,
) *CompanyReconciler {
	if providerTimeout <= 0 {
		providerTimeout = 10 * time.Second
	}
	return &CompanyReconciler{
		snapshots:       snapshots,
		purchases:       purchases,
		equity:          equity,
		crypto:          crypto,
		thresholds:      thresholds,
		providerTimeout: providerTimeout,
		now:             time.Now,
	}
}

// Reconcile upserts the company's snapshot for day and returns an alert event
// when the change crosses the alert thresholds. Market data failures leave the
// enrichment fields null on a new row; on a same-day rerun the upsert keeps the
// market cap and shares outstanding stored by the earlier run. Persistence
// failures are returned.
func (r *CompanyReconciler) Reconcile(ctx context.Context, company *models.CompanyWithWalletSum, day types.SnapshotDay) (*ReconcileResult, error) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"companyId": company.ID,
		"day":       day.String(),
	})

	current := SelectReserve(company)
	info := r.enrich(ctx, &company.Company, logger)

	prior, err := r.snapshots.LatestCompanySnapshotBefore(ctx, company.ID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load prior snapshot: %w", err)
	}
	previous := PreviousReserve(prior, &company.Company)
	diff := current.Sub(previous)
	pct := PercentChange(current, previous)

	existing, err := r.snapshots.GetCompanySnapshot(ctx, company.ID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing snapshot: %w", err)
	}

	totalCost, err := r.purchases.SumTotalCost(ctx, company.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum purchase cost: %w", err)
	}

	snapshot := &models.SnapshotCompany{
		CompanyID:            company.ID,
		Day:                  day,
		Reserve:              current,
		ReserveDiff:          diff,
		PercentChange:        pct,
		MarketCap:            info.MarketCap,
		SharesOutstanding:    info.SharesOutstanding,
		TotalCostAccumulated: totalCost,
	}
	if existing != nil {
		snapshot.ID = existing.ID
	}
	if err := r.snapshots.UpsertCompanySnapshot(ctx, snapshot); err != nil {
		return nil, err
	}

	result := &ReconcileResult{Snapshot: snapshot, Created: existing == nil}
	if r.thresholds.ShouldAlert(existing, current, diff, pct) {
		result.Alert = &types.AlertEvent{
			CompanyID:     company.ID,
			CompanyName:   company.Name,
			Ticker:        company.Ticker,
			Day:           day,
			PrevReserve:   previous,
			NewReserve:    current,
			ReserveDiff:   diff,
			PercentChange: pct,
			DetectedAt:    r.now().UTC(),
		}
	}

	logger.WithFields(map[string]interface{}{
		"reserve": current.String(),
		"diff":    diff.String(),
		"created": result.Created,
		"alert":   result.Alert != nil,
	}).Debug("company reconciled")

	return result, nil
}

// enrich resolves market data for ACTIVE companies with a ticker and a tracking mode.
// Failures and timeouts are logged and yield empty market info.
func (r *CompanyReconciler) enrich(ctx context.Context, company *models.Company, logger *logging.Logger) types.MarketInfo {
	tracking := company.Tracking()
	if company.Status != types.CompanyStatusActive || company.Ticker == "" || tracking == types.TrackingNone {
		return types.MarketInfo{}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.providerTimeout)
	defer cancel()

	var (
		info *types.MarketInfo
		err  error
	)
	switch tracking {
	case types.TrackingEquity:
		info, err = r.equity.ResolveEquityInfo(lookupCtx, company.Ticker)
	case types.TrackingCrypto:
		info, err = r.crypto.ResolveCryptoInfo(lookupCtx, company.Ticker)
	}
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"tracking":  tracking.String(),
			"errorCode": internalerrors.Categorize(err).Code,
		}).WithError(err).Warn("market data lookup failed")
		return types.MarketInfo{}
	}
	if info == nil {
		return types.MarketInfo{}
	}

	out := types.MarketInfo{MarketCap: info.MarketCap}
	if tracking == types.TrackingEquity {
		out.SharesOutstanding = info.SharesOutstanding
	}
	return out
}
