package service

import (
	"context"
	"time"

	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/logging"
	"github.com/eth-reserves/internal/metrics"
	"github.com/eth-reserves/internal/models"
	"github.com/eth-reserves/internal/storage"
	"github.com/eth-reserves/internal/types"
)

// maxRangeDays bounds history queries
const maxRangeDays = 366

// SnapshotReader reads persisted snapshots
type SnapshotReader interface {
	LatestAggregate(ctx context.Context) (*models.Snapshot, error)
	ListAggregates(ctx context.Context, from, to types.SnapshotDay) ([]*models.Snapshot, error)
	ListCompanyHistory(ctx context.Context, companyID string, from, to types.SnapshotDay) ([]*models.SnapshotCompany, error)
	LatestCompanySnapshotBefore(ctx context.Context, companyID string, day types.SnapshotDay) (*models.SnapshotCompany, error)
}

// SeriesSource reads the chart series from the analytics store
type SeriesSource interface {
	AggregateSeries(ctx context.Context, from, to types.SnapshotDay) ([]storage.SeriesPoint, error)
}

// ReadCache stores JSON read models
type ReadCache interface {
	LatestSnapshotKey() string
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// PublicCompany is an active company with its most recent snapshot
type PublicCompany struct {
	*models.Company
	LatestSnapshot *models.SnapshotCompany `json:"latestSnapshot,omitempty"`
}

// SnapshotQueryService serves the public read surface
type SnapshotQueryService struct {
	snapshots SnapshotReader
	companies CompanyStore
	series    SeriesSource
	cache     ReadCache
	now       func() time.Time
}

// NewSnapshotQueryService creates a query service. series and cache may be nil.
func NewSnapshotQueryService(snapshots SnapshotReader, companies CompanyStore, series SeriesSource, cache ReadCache) *SnapshotQueryService {
	return &SnapshotQueryService{
		snapshots: snapshots,
		companies: companies,
		series:    series,
		cache:     cache,
		now:       time.Now,
	}
}

// Latest returns the most recent aggregate, served from cache when possible
func (s *SnapshotQueryService) Latest(ctx context.Context) (*models.Snapshot, error) {
	logger := logging.FromContext(ctx)

	if s.cache != nil {
		var cached models.Snapshot
		hit, err := s.cache.Get(ctx, s.cache.LatestSnapshotKey(), &cached)
		if err != nil {
			logger.WithError(err).Warn("latest snapshot cache read failed")
		}
		if hit {
			metrics.CacheLookups.WithLabelValues("snapshot", "hit").Inc()
			return &cached, nil
		}
		metrics.CacheLookups.WithLabelValues("snapshot", "miss").Inc()
	}

	snapshot, err := s.snapshots.LatestAggregate(ctx)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, internalerrors.NewNotFoundError("snapshot", "latest")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.cache.LatestSnapshotKey(), snapshot); err != nil {
			logger.WithError(err).Warn("latest snapshot cache write failed")
		}
	}
	return snapshot, nil
}

// ListSnapshots returns aggregates within [from, to]
func (s *SnapshotQueryService) ListSnapshots(ctx context.Context, from, to types.SnapshotDay) ([]*models.Snapshot, error) {
	from, to, err := s.normalizeRange(from, to)
	if err != nil {
		return nil, err
	}
	return s.snapshots.ListAggregates(ctx, from, to)
}

// Series returns chart points within [from, to]. Without the analytics store,
// or when it fails, points are built from the Postgres aggregates.
func (s *SnapshotQueryService) Series(ctx context.Context, from, to types.SnapshotDay) ([]storage.SeriesPoint, error) {
	from, to, err := s.normalizeRange(from, to)
	if err != nil {
		return nil, err
	}

	if s.series != nil {
		points, err := s.series.AggregateSeries(ctx, from, to)
		if err == nil {
			return points, nil
		}
		logging.FromContext(ctx).WithError(err).Warn("series query failed, falling back to postgres")
	}

	aggregates, err := s.snapshots.ListAggregates(ctx, from, to)
	if err != nil {
		return nil, err
	}
	points := make([]storage.SeriesPoint, 0, len(aggregates))
	for _, a := range aggregates {
		points = append(points, storage.SeriesPoint{
			Day:                  a.Day,
			TotalReserve:         a.TotalReserve,
			TotalReserveUSD:      a.TotalReserveUSD,
			TotalActiveCompanies: uint32(a.TotalActiveCompanies),
			ETHPrice:             a.ETHPrice,
		})
	}
	return points, nil
}

// ListPublicCompanies returns active companies with their latest snapshot
func (s *SnapshotQueryService) ListPublicCompanies(ctx context.Context) ([]*PublicCompany, error) {
	companies, err := s.companies.List(ctx, types.CompanyStatusActive)
	if err != nil {
		return nil, err
	}

	tomorrow := types.DayOf(s.now()).AddDays(1)
	out := make([]*PublicCompany, 0, len(companies))
	for _, c := range companies {
		latest, err := s.snapshots.LatestCompanySnapshotBefore(ctx, c.ID, tomorrow)
		if err != nil {
			return nil, err
		}
		out = append(out, &PublicCompany{Company: c, LatestSnapshot: latest})
	}
	return out, nil
}

// CompanyHistory returns an active company's snapshots within [from, to]
func (s *SnapshotQueryService) CompanyHistory(ctx context.Context, companyID string, from, to types.SnapshotDay) ([]*models.SnapshotCompany, error) {
	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company.Status != types.CompanyStatusActive {
		return nil, internalerrors.NewNotFoundError("company", companyID)
	}

	from, to, err = s.normalizeRange(from, to)
	if err != nil {
		return nil, err
	}
	return s.snapshots.ListCompanyHistory(ctx, companyID, from, to)
}

// normalizeRange defaults to the last 30 days and rejects inverted or oversized ranges
func (s *SnapshotQueryService) normalizeRange(from, to types.SnapshotDay) (types.SnapshotDay, types.SnapshotDay, error) {
	if to.IsZero() {
		to = types.DayOf(s.now())
	}
	if from.IsZero() {
		from = to.AddDays(-29)
	}
	if from.After(to) {
		return from, to, internalerrors.NewInvalidParameterError("from", "must not be after to")
	}
	if to.Start().Sub(from.Start()) > maxRangeDays*24*time.Hour {
		return from, to, internalerrors.NewInvalidParameterError("from", "range must not exceed 366 days")
	}
	return from, to, nil
}
