package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/models"
)

// PurchaseRepository handles the append-only purchase ledger
type PurchaseRepository struct {
	db *PostgresDB
}

// NewPurchaseRepository creates a new purchase repository
func NewPurchaseRepository(db *PostgresDB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// CreateAndIncrementReserve inserts the purchase and adds its amount to the
// company's current reserve in one transaction. It returns the updated reserve.
func (r *PurchaseRepository) CreateAndIncrementReserve(ctx context.Context, p *models.Purchase) (decimal.Decimal, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.PurchasedAt.IsZero() {
		p.PurchasedAt = now
	}
	p.CreatedAt = now

	var reserve decimal.Decimal
	err := inTx(ctx, r.db.Pool(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO purchases (id, company_id, amount, total_cost, type, purchased_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, p.ID, p.CompanyID, p.Amount, p.TotalCost, p.Type, p.PurchasedAt, p.CreatedAt); err != nil {
			return dbError("insert purchase", err)
		}

		err := tx.QueryRow(ctx, `
			UPDATE companies
			SET current_reserve = current_reserve + $2, updated_at = $3
			WHERE id = $1
			RETURNING current_reserve
		`, p.CompanyID, p.Amount, now).Scan(&reserve)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return companyNotFound(p.CompanyID)
			}
			return dbError("increment company reserve", err)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return reserve, nil
}

// SumTotalCost returns the total cost over all purchases of a company.
// The result is invalid (NULL) when the company has no purchases.
func (r *PurchaseRepository) SumTotalCost(ctx context.Context, companyID string) (decimal.NullDecimal, error) {
	var total decimal.NullDecimal
	err := r.db.Pool().QueryRow(ctx,
		`SELECT SUM(total_cost) FROM purchases WHERE company_id = $1`, companyID,
	).Scan(&total)
	if err != nil {
		return decimal.NullDecimal{}, dbError("sum purchase cost", err)
	}
	return total, nil
}

// ListByCompany returns a company's purchases, newest first
func (r *PurchaseRepository) ListByCompany(ctx context.Context, companyID string) ([]*models.Purchase, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, company_id, amount, total_cost, type, purchased_at, created_at
		FROM purchases
		WHERE company_id = $1
		ORDER BY purchased_at DESC
	`, companyID)
	if err != nil {
		return nil, dbError("list purchases", err)
	}
	defer rows.Close()

	var purchases []*models.Purchase
	for rows.Next() {
		var p models.Purchase
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Amount, &p.TotalCost, &p.Type, &p.PurchasedAt, &p.CreatedAt); err != nil {
			return nil, dbError("scan purchase", err)
		}
		purchases = append(purchases, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate purchases", err)
	}
	return purchases, nil
}
