package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/models"
	"github.com/eth-reserves/internal/types"
)

// SnapshotSeriesRepository mirrors daily snapshots into ClickHouse for chart queries.
// Postgres stays the source of truth; the mirror is rewritten on every run.
type SnapshotSeriesRepository struct {
	db *ClickHouseDB
}

// NewSnapshotSeriesRepository creates a new series repository
func NewSnapshotSeriesRepository(db *ClickHouseDB) *SnapshotSeriesRepository {
	return &SnapshotSeriesRepository{db: db}
}

// SeriesPoint is one day of the aggregate chart
type SeriesPoint struct {
	Day                  types.SnapshotDay `json:"date"`
	TotalReserve         decimal.Decimal   `json:"totalReserve"`
	TotalReserveUSD      decimal.Decimal   `json:"totalReserveUsd"`
	TotalActiveCompanies uint32            `json:"totalActiveCompanies"`
	ETHPrice             decimal.Decimal   `json:"ethPrice"`
}

func nullDecimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

// MirrorAggregate writes the aggregate row for its day
func (r *SnapshotSeriesRepository) MirrorAggregate(ctx context.Context, s *models.Snapshot) error {
	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO reserve_snapshots (snapshot_date, total_reserve, total_reserve_usd, total_active_companies,
			reserve_diff, percent_change, eth_price, updated_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	if err := batch.Append(
		s.Day.Start(),
		s.TotalReserve,
		s.TotalReserveUSD,
		uint32(s.TotalActiveCompanies), // #nosec G115 - company counts are small
		s.ReserveDiff,
		nullDecimalPtr(s.PercentChange),
		s.ETHPrice,
		time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to append to batch: %w", err)
	}

	return batch.Send()
}

// MirrorCompanySnapshots writes a batch of company rows
func (r *SnapshotSeriesRepository) MirrorCompanySnapshots(ctx context.Context, snapshots []*models.SnapshotCompany) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO company_reserve_snapshots (company_id, snapshot_date, reserve, reserve_diff,
			percent_change, market_cap, updated_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	now := time.Now().UTC()
	for _, s := range snapshots {
		if err := batch.Append(
			s.CompanyID,
			s.Day.Start(),
			s.Reserve,
			s.ReserveDiff,
			nullDecimalPtr(s.PercentChange),
			nullDecimalPtr(s.MarketCap),
			now,
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}

// AggregateSeries returns one point per day within [from, to], oldest first
func (r *SnapshotSeriesRepository) AggregateSeries(ctx context.Context, from, to types.SnapshotDay) ([]SeriesPoint, error) {
	query := `
		SELECT snapshot_date, total_reserve, total_reserve_usd, total_active_companies, eth_price
		FROM reserve_snapshots FINAL
		WHERE snapshot_date >= ? AND snapshot_date <= ?
		ORDER BY snapshot_date ASC
	`

	rows, err := r.db.Query(ctx, query, from.Start(), to.Start())
	if err != nil {
		return nil, fmt.Errorf("failed to query reserve series: %w", err)
	}
	defer rows.Close()

	var points []SeriesPoint
	for rows.Next() {
		var (
			p    SeriesPoint
			date time.Time
		)
		if err := rows.Scan(&date, &p.TotalReserve, &p.TotalReserveUSD, &p.TotalActiveCompanies, &p.ETHPrice); err != nil {
			return nil, fmt.Errorf("failed to scan series point: %w", err)
		}
		p.Day = types.DayOf(date)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating series: %w", err)
	}
	return points, nil
}
