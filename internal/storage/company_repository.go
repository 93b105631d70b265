package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/models"
	"github.com/eth-reserves/internal/types"
)

// CompanyRepository handles company persistence
type CompanyRepository struct {
	db *PostgresDB
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *PostgresDB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

const companyColumns = `id, name, category, secondary_categories, ticker, accounting_type,
	market_cap_tracking, status, current_reserve, website, created_at, updated_at`

func companyNotFound(id string) error {
	return &types.ServiceError{
		Code:    "COMPANY_NOT_FOUND",
		Message: fmt.Sprintf("company not found: %s", id),
		Details: map[string]interface{}{"companyId": id},
	}
}

func scanCompany(row pgx.Row, c *models.Company, extra ...any) error {
	dest := []any{
		&c.ID,
		&c.Name,
		&c.Category,
		&c.SecondaryCategories,
		&c.Ticker,
		&c.AccountingType,
		&c.MarketCapTracking,
		&c.Status,
		&c.CurrentReserve,
		&c.Website,
		&c.CreatedAt,
		&c.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

// Create inserts a new company
func (r *CompanyRepository) Create(ctx context.Context, company *models.Company) error {
	if company.ID == "" {
		company.ID = uuid.New().String()
	}
	if company.SecondaryCategories == nil {
		company.SecondaryCategories = []string{}
	}
	if company.Status == "" {
		company.Status = types.CompanyStatusPending
	}

	now := time.Now().UTC()
	company.CreatedAt = now
	company.UpdatedAt = now

	query := `
		INSERT INTO companies (` + companyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		company.ID,
		company.Name,
		company.Category,
		company.SecondaryCategories,
		company.Ticker,
		company.AccountingType,
		company.MarketCapTracking,
		company.Status,
		company.CurrentReserve,
		company.Website,
		company.CreatedAt,
		company.UpdatedAt,
	)
	if err != nil {
		return dbError("create company", err)
	}
	return nil
}

// GetByID retrieves a company by ID
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*models.Company, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, companyNotFound(id)
	}

	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`

	var company models.Company
	if err := scanCompany(r.db.Pool().QueryRow(ctx, query, id), &company); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, companyNotFound(id)
		}
		return nil, dbError("get company", err)
	}
	return &company, nil
}

// List returns companies ordered by reserve, optionally filtered by status
func (r *CompanyRepository) List(ctx context.Context, status types.CompanyStatus) ([]*models.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY current_reserve DESC, name`

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, dbError("list companies", err)
	}
	defer rows.Close()

	var companies []*models.Company
	for rows.Next() {
		var company models.Company
		if err := scanCompany(rows, &company); err != nil {
			return nil, dbError("scan company", err)
		}
		companies = append(companies, &company)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate companies", err)
	}
	return companies, nil
}

const companyWithWalletSumQuery = `
	SELECT c.id, c.name, c.category, c.secondary_categories, c.ticker, c.accounting_type,
		c.market_cap_tracking, c.status, c.current_reserve, c.website, c.created_at, c.updated_at,
		w.total
	FROM companies c
	LEFT JOIN (
		SELECT company_id, SUM(balance) AS total
		FROM company_wallets
		GROUP BY company_id
	) w ON w.company_id = c.id
`

// ListForSnapshot returns every non-INACTIVE company with the sum of its cached
// wallet balances. WalletSum is NULL for companies without wallets.
func (r *CompanyRepository) ListForSnapshot(ctx context.Context) ([]*models.CompanyWithWalletSum, error) {
	rows, err := r.db.Pool().Query(ctx, companyWithWalletSumQuery+`WHERE c.status <> $1 ORDER BY c.name`, types.CompanyStatusInactive)
	if err != nil {
		return nil, dbError("list companies for snapshot", err)
	}
	defer rows.Close()

	var companies []*models.CompanyWithWalletSum
	for rows.Next() {
		var item models.CompanyWithWalletSum
		if err := scanCompany(rows, &item.Company, &item.WalletSum); err != nil {
			return nil, dbError("scan company", err)
		}
		companies = append(companies, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate companies", err)
	}
	return companies, nil
}

// GetWithWalletSum returns one company with its wallet balance sum, regardless of status
func (r *CompanyRepository) GetWithWalletSum(ctx context.Context, id string) (*models.CompanyWithWalletSum, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, companyNotFound(id)
	}

	var item models.CompanyWithWalletSum
	err := scanCompany(r.db.Pool().QueryRow(ctx, companyWithWalletSumQuery+`WHERE c.id = $1`, id), &item.Company, &item.WalletSum)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, companyNotFound(id)
		}
		return nil, dbError("get company", err)
	}
	return &item, nil
}

// Update overwrites the editable fields of a company. The reserve is only
// changed through purchases or SetReserve.
func (r *CompanyRepository) Update(ctx context.Context, company *models.Company) error {
	company.UpdatedAt = time.Now().UTC()
	if company.SecondaryCategories == nil {
		company.SecondaryCategories = []string{}
	}

	query := `
		UPDATE companies
		SET name = $2, category = $3, secondary_categories = $4, ticker = $5,
			accounting_type = $6, market_cap_tracking = $7, status = $8, website = $9, updated_at = $10
		WHERE id = $1
	`

	tag, err := r.db.Pool().Exec(ctx, query,
		company.ID,
		company.Name,
		company.Category,
		company.SecondaryCategories,
		company.Ticker,
		company.AccountingType,
		company.MarketCapTracking,
		company.Status,
		company.Website,
		company.UpdatedAt,
	)
	if err != nil {
		return dbError("update company", err)
	}
	if tag.RowsAffected() == 0 {
		return companyNotFound(company.ID)
	}
	return nil
}

// SetReserve overwrites the manually maintained reserve of a company
func (r *CompanyRepository) SetReserve(ctx context.Context, id string, reserve decimal.Decimal) error {
	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE companies SET current_reserve = $2, updated_at = NOW() WHERE id = $1`,
		id, reserve,
	)
	if err != nil {
		return dbError("set company reserve", err)
	}
	if tag.RowsAffected() == 0 {
		return companyNotFound(id)
	}
	return nil
}

// Exists reports whether a company with the given ID exists
func (r *CompanyRepository) Exists(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	var exists bool
	err := r.db.Pool().QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM companies WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, dbError("check company existence", err)
	}
	return exists, nil
}
