package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eth-reserves/internal/models"
	"github.com/eth-reserves/internal/types"
)

// SnapshotRepository stores daily aggregate and per-company reserve snapshots.
// Rows are keyed by UTC day; writes are upserts and rows are never deleted.
type SnapshotRepository struct {
	db *PostgresDB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *PostgresDB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

const snapshotCompanyColumns = `id, company_id, snapshot_date, reserve, reserve_diff, percent_change,
	market_cap, shares_outstanding, total_cost_accumulated, created_at, updated_at`

const snapshotColumns = `id, snapshot_date, total_reserve, total_reserve_usd, total_active_companies,
	reserve_diff, percent_change, eth_price, created_at, updated_at`

func scanSnapshotCompany(row pgx.Row, s *models.SnapshotCompany, extra ...any) error {
	var date time.Time
	dest := []any{
		&s.ID,
		&s.CompanyID,
		&date,
		&s.Reserve,
		&s.ReserveDiff,
		&s.PercentChange,
		&s.MarketCap,
		&s.SharesOutstanding,
		&s.TotalCostAccumulated,
		&s.CreatedAt,
		&s.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	s.Day = types.DayOf(date)
	return nil
}

func scanSnapshot(row pgx.Row, s *models.Snapshot) error {
	var date time.Time
	if err := row.Scan(
		&s.ID,
		&date,
		&s.TotalReserve,
		&s.TotalReserveUSD,
		&s.TotalActiveCompanies,
		&s.ReserveDiff,
		&s.PercentChange,
		&s.ETHPrice,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return err
	}
	s.Day = types.DayOf(date)
	return nil
}

func (r *SnapshotRepository) findCompanySnapshot(ctx context.Context, query string, args ...any) (*models.SnapshotCompany, error) {
	var s models.SnapshotCompany
	if err := scanSnapshotCompany(r.db.Pool().QueryRow(ctx, query, args...), &s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, dbError("get company snapshot", err)
	}
	return &s, nil
}

// GetCompanySnapshot returns the company's snapshot for day, or nil when none exists
func (r *SnapshotRepository) GetCompanySnapshot(ctx context.Context, companyID string, day types.SnapshotDay) (*models.SnapshotCompany, error) {
	query := `SELECT ` + snapshotCompanyColumns + ` FROM snapshot_companies
		WHERE company_id = $1 AND snapshot_date = $2`
	return r.findCompanySnapshot(ctx, query, companyID, day.Start())
}

// LatestCompanySnapshotBefore returns the most recent company snapshot strictly
// before day, or nil when the company has no earlier history
func (r *SnapshotRepository) LatestCompanySnapshotBefore(ctx context.Context, companyID string, day types.SnapshotDay) (*models.SnapshotCompany, error) {
	query := `SELECT ` + snapshotCompanyColumns + ` FROM snapshot_companies
		WHERE company_id = $1 AND snapshot_date < $2
		ORDER BY snapshot_date DESC
		LIMIT 1`
	return r.findCompanySnapshot(ctx, query, companyID, day.Start())
}

// UpsertCompanySnapshot creates or overwrites the (company, day) row.
// Market data left NULL by a failed lookup keeps any value already stored for that day.
func (r *SnapshotRepository) UpsertCompanySnapshot(ctx context.Context, s *models.SnapshotCompany) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO snapshot_companies (` + snapshotCompanyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (company_id, snapshot_date)
		DO UPDATE SET
			reserve = EXCLUDED.reserve,
			reserve_diff = EXCLUDED.reserve_diff,
			percent_change = EXCLUDED.percent_change,
			market_cap = COALESCE(EXCLUDED.market_cap, snapshot_companies.market_cap),
			shares_outstanding = COALESCE(EXCLUDED.shares_outstanding, snapshot_companies.shares_outstanding),
			total_cost_accumulated = EXCLUDED.total_cost_accumulated,
			updated_at = EXCLUDED.updated_at
		RETURNING id, market_cap, shares_outstanding, created_at, updated_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		s.ID,
		s.CompanyID,
		s.Day.Start(),
		s.Reserve,
		s.ReserveDiff,
		s.PercentChange,
		s.MarketCap,
		s.SharesOutstanding,
		s.TotalCostAccumulated,
		now,
	).Scan(&s.ID, &s.MarketCap, &s.SharesOutstanding, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return dbError("upsert company snapshot", err)
	}
	return nil
}

// ListCompanySnapshotsForDay returns every company row for day joined with the
// company's current status, for aggregate eligibility filtering
func (r *SnapshotRepository) ListCompanySnapshotsForDay(ctx context.Context, day types.SnapshotDay) ([]*models.EligibleSnapshotCompany, error) {
	query := `
		SELECT s.id, s.company_id, s.snapshot_date, s.reserve, s.reserve_diff, s.percent_change,
			s.market_cap, s.shares_outstanding, s.total_cost_accumulated, s.created_at, s.updated_at,
			c.status
		FROM snapshot_companies s
		JOIN companies c ON c.id = s.company_id
		WHERE s.snapshot_date = $1
		ORDER BY s.reserve DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, day.Start())
	if err != nil {
		return nil, dbError("list company snapshots", err)
	}
	defer rows.Close()

	var out []*models.EligibleSnapshotCompany
	for rows.Next() {
		var item models.EligibleSnapshotCompany
		if err := scanSnapshotCompany(rows, &item.SnapshotCompany, &item.Status); err != nil {
			return nil, dbError("scan company snapshot", err)
		}
		out = append(out, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate company snapshots", err)
	}
	return out, nil
}

// ListCompanyHistory returns a company's snapshots within [from, to], oldest first
func (r *SnapshotRepository) ListCompanyHistory(ctx context.Context, companyID string, from, to types.SnapshotDay) ([]*models.SnapshotCompany, error) {
	query := `SELECT ` + snapshotCompanyColumns + ` FROM snapshot_companies
		WHERE company_id = $1 AND snapshot_date >= $2 AND snapshot_date <= $3
		ORDER BY snapshot_date`

	rows, err := r.db.Pool().Query(ctx, query, companyID, from.Start(), to.Start())
	if err != nil {
		return nil, dbError("list company history", err)
	}
	defer rows.Close()

	var out []*models.SnapshotCompany
	for rows.Next() {
		var s models.SnapshotCompany
		if err := scanSnapshotCompany(rows, &s); err != nil {
			return nil, dbError("scan company snapshot", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate company snapshots", err)
	}
	return out, nil
}

func (r *SnapshotRepository) findSnapshot(ctx context.Context, query string, args ...any) (*models.Snapshot, error) {
	var s models.Snapshot
	if err := scanSnapshot(r.db.Pool().QueryRow(ctx, query, args...), &s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, dbError("get snapshot", err)
	}
	return &s, nil
}

// GetAggregate returns the aggregate for day, or nil when none exists
func (r *SnapshotRepository) GetAggregate(ctx context.Context, day types.SnapshotDay) (*models.Snapshot, error) {
	return r.findSnapshot(ctx, `SELECT `+snapshotColumns+` FROM snapshots WHERE snapshot_date = $1`, day.Start())
}

// LatestAggregateBefore returns the most recent aggregate strictly before day
func (r *SnapshotRepository) LatestAggregateBefore(ctx context.Context, day types.SnapshotDay) (*models.Snapshot, error) {
	return r.findSnapshot(ctx, `SELECT `+snapshotColumns+` FROM snapshots
		WHERE snapshot_date < $1 ORDER BY snapshot_date DESC LIMIT 1`, day.Start())
}

// LatestAggregate returns the most recent aggregate, or nil when none exists
func (r *SnapshotRepository) LatestAggregate(ctx context.Context) (*models.Snapshot, error) {
	return r.findSnapshot(ctx, `SELECT `+snapshotColumns+` FROM snapshots ORDER BY snapshot_date DESC LIMIT 1`)
}

// UpsertAggregate creates or overwrites the aggregate row for the snapshot's day
func (r *SnapshotRepository) UpsertAggregate(ctx context.Context, s *models.Snapshot) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO snapshots (` + snapshotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (snapshot_date)
		DO UPDATE SET
			total_reserve = EXCLUDED.total_reserve,
			total_reserve_usd = EXCLUDED.total_reserve_usd,
			total_active_companies = EXCLUDED.total_active_companies,
			reserve_diff = EXCLUDED.reserve_diff,
			percent_change = EXCLUDED.percent_change,
			eth_price = EXCLUDED.eth_price,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		s.ID,
		s.Day.Start(),
		s.TotalReserve,
		s.TotalReserveUSD,
		s.TotalActiveCompanies,
		s.ReserveDiff,
		s.PercentChange,
		s.ETHPrice,
		now,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return dbError("upsert snapshot", err)
	}
	return nil
}

// ListAggregates returns aggregates within [from, to], oldest first
func (r *SnapshotRepository) ListAggregates(ctx context.Context, from, to types.SnapshotDay) ([]*models.Snapshot, error) {
	rows, err := r.db.Pool().Query(ctx, `SELECT `+snapshotColumns+` FROM snapshots
		WHERE snapshot_date >= $1 AND snapshot_date <= $2
		ORDER BY snapshot_date`, from.Start(), to.Start())
	if err != nil {
		return nil, dbError("list snapshots", err)
	}
	defer rows.Close()

	var out []*models.Snapshot
	for rows.Next() {
		var s models.Snapshot
		if err := scanSnapshot(rows, &s); err != nil {
			return nil, dbError("scan snapshot", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate snapshots", err)
	}
	return out, nil
}
