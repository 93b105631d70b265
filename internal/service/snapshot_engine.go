package service

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/adapter"
	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/logging"
	"github.com/eth-reserves/internal/metrics"
	"github.com/eth-reserves/internal/models"
	"github.com/eth-reserves/internal/types"
)

// ErrPriceUnavailable fails a daily run when no ETH/USD price can be obtained.
// Company snapshots written before the price lookup are kept; no aggregate is written.
var ErrPriceUnavailable = &internalerrors.CategorizedError{
	Category:   internalerrors.CategoryProvider,
	StatusCode: http.StatusBadGateway,
	Code:       "PRICE_UNAVAILABLE",
	Message:    "ETH/USD price unavailable; company snapshots were written but no aggregate",
}

// SnapshotCompanySource lists the companies reconciled by a daily run
type SnapshotCompanySource interface {
	ListForSnapshot(ctx context.Context) ([]*models.CompanyWithWalletSum, error)
}

// AggregateStore reads a day's company rows and persists the daily aggregate
type AggregateStore interface {
	ListCompanySnapshotsForDay(ctx context.Context, day types.SnapshotDay) ([]*models.EligibleSnapshotCompany, error)
	LatestAggregateBefore(ctx context.Context, day types.SnapshotDay) (*models.Snapshot, error)
	UpsertAggregate(ctx context.Context, s *models.Snapshot) error
}

// CompanyFailure records a company whose reconciliation failed
type CompanyFailure struct {
	CompanyID   string `json:"companyId"`
	CompanyName string `json:"companyName"`
	Error       string `json:"error"`
}

// DailyRunResult summarizes one daily reconciliation run
type DailyRunResult struct {
	Day       types.SnapshotDay         `json:"date"`
	Aggregate *models.Snapshot          `json:"aggregate,omitempty"`
	Companies []*models.SnapshotCompany `json:"companies"`
	Failures  []CompanyFailure          `json:"failures,omitempty"`
	Alerts    []types.AlertEvent        `json:"alerts,omitempty"`
	Duration  time.Duration             `json:"duration"`
}

// SnapshotEngineConfig configures the engine
type SnapshotEngineConfig struct {
	Concurrency  int
	PriceTimeout time.Duration
	Thresholds   Thresholds
}

// SnapshotEngine runs the daily reconciliation: every non-INACTIVE company is
// reconciled concurrently, then the aggregate is computed once all have finished.
type SnapshotEngine struct {
	companies    SnapshotCompanySource
	aggregates   AggregateStore
	reconciler   *CompanyReconciler
	price        adapter.PriceResolver
	concurrency  int
	priceTimeout time.Duration
	thresholds   Thresholds
	now          func() time.Time
}

// NewSnapshotEngine creates a snapshot engine
func NewSnapshotEngine(
	companies SnapshotCompanySource,
	aggregates AggregateStore,
	reconciler *CompanyReconciler,
	price adapter.PriceResolver,
	cfg SnapshotEngineConfig,
) *SnapshotEngine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.PriceTimeout <= 0 {
		cfg.PriceTimeout = 15 * time.Second
	}
	return &SnapshotEngine{
		companies:    companies,
		aggregates:   aggregates,
		reconciler:   reconciler,
		price:        price,
		concurrency:  cfg.Concurrency,
		priceTimeout: cfg.PriceTimeout,
		thresholds:   cfg.Thresholds,
		now:          time.Now,
	}
}

// RunDaily reconciles every company for day and upserts the aggregate.
// A zero day means today (UTC). Future days are rejected. The returned result
// is non-nil whenever company reconciliation ran, even if the run then failed.
func (e *SnapshotEngine) RunDaily(ctx context.Context, day types.SnapshotDay) (*DailyRunResult, error) {
	start := e.now()
	today := types.DayOf(start)
	if day.IsZero() {
		day = today
	}
	if day.After(today) {
		return nil, internalerrors.NewValidationError("snapshot date cannot be in the future",
			map[string]string{"date": day.String()})
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"component": "snapshot_engine",
		"day":       day.String(),
	})
	ctx = logging.WithLogger(ctx, logger)

	companies, err := e.companies.ListForSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	result := &DailyRunResult{Day: day}
	e.reconcileAll(ctx, companies, day, result)
	if err := ctx.Err(); err != nil {
		result.Duration = e.now().Sub(start)
		return result, fmt.Errorf("daily run interrupted: %w", err)
	}

	price, err := e.resolvePrice(ctx)
	if err != nil {
		result.Duration = e.now().Sub(start)
		logger.WithError(err).Error("daily run failed: no ETH price, aggregate not written")
		return result, err
	}

	aggregate, err := e.writeAggregate(ctx, day, price)
	result.Duration = e.now().Sub(start)
	if err != nil {
		return result, err
	}
	result.Aggregate = aggregate

	logger.WithFields(map[string]interface{}{
		"companies":       len(result.Companies),
		"failures":        len(result.Failures),
		"alerts":          len(result.Alerts),
		"totalReserve":    aggregate.TotalReserve.String(),
		"activeCompanies": aggregate.TotalActiveCompanies,
		"durationMs":      result.Duration.Milliseconds(),
	}).Info("daily snapshot completed")

	return result, nil
}

// reconcileAll fans out one task per company and waits for all of them
func (e *SnapshotEngine) reconcileAll(ctx context.Context, companies []*models.CompanyWithWalletSum, day types.SnapshotDay, result *DailyRunResult) {
	pool := pond.NewPool(e.concurrency)
	var mu sync.Mutex

	for _, c := range companies {
		company := c
		pool.Submit(func() {
			res, err := e.reconciler.Reconcile(ctx, company, day)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.CompanyReconciliations.WithLabelValues("daily", "failed").Inc()
				logging.FromContext(ctx).WithField("companyId", company.ID).WithError(err).Error("company reconciliation failed")
				result.Failures = append(result.Failures, CompanyFailure{
					CompanyID:   company.ID,
					CompanyName: company.Name,
					Error:       err.Error(),
				})
				return
			}
			metrics.CompanyReconciliations.WithLabelValues("daily", "ok").Inc()
			result.Companies = append(result.Companies, res.Snapshot)
			if res.Alert != nil {
				result.Alerts = append(result.Alerts, *res.Alert)
			}
		})
	}
	pool.StopAndWait()

	sort.Slice(result.Companies, func(i, j int) bool { return result.Companies[i].CompanyID < result.Companies[j].CompanyID })
	sort.Slice(result.Failures, func(i, j int) bool { return result.Failures[i].CompanyID < result.Failures[j].CompanyID })
	sort.Slice(result.Alerts, func(i, j int) bool { return result.Alerts[i].CompanyID < result.Alerts[j].CompanyID })
}

func (e *SnapshotEngine) resolvePrice(ctx context.Context) (decimal.Decimal, error) {
	priceCtx, cancel := context.WithTimeout(ctx, e.priceTimeout)
	defer cancel()

	price, err := e.price.ResolveETHUSDPrice(priceCtx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrPriceUnavailable, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive price %s", ErrPriceUnavailable, price)
	}
	return price, nil
}

// writeAggregate sums the day's eligible company rows and upserts the aggregate
func (e *SnapshotEngine) writeAggregate(ctx context.Context, day types.SnapshotDay, price decimal.Decimal) (*models.Snapshot, error) {
	rows, err := e.aggregates.ListCompanySnapshotsForDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list company snapshots: %w", err)
	}

	total := decimal.Zero
	count := 0
	for _, row := range rows {
		if e.thresholds.IsAggregateEligible(row.Status, row.Reserve) {
			total = total.Add(row.Reserve)
			count++
		}
	}

	previous := decimal.Zero
	prior, err := e.aggregates.LatestAggregateBefore(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous aggregate: %w", err)
	}
	if prior != nil {
		previous = prior.TotalReserve
	}

	aggregate := &models.Snapshot{
		Day:                  day,
		TotalReserve:         total,
		TotalReserveUSD:      total.Mul(price).Round(2),
		TotalActiveCompanies: count,
		ReserveDiff:          total.Sub(previous),
		PercentChange:        PercentChange(total, previous),
		ETHPrice:             price,
	}
	if err := e.aggregates.UpsertAggregate(ctx, aggregate); err != nil {
		return nil, err
	}
	return aggregate, nil
}
