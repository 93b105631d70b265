package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/models"
	"github.com/eth-reserves/internal/types"
)

// WalletRepository handles company wallet persistence
type WalletRepository struct {
	db *PostgresDB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *PostgresDB) *WalletRepository {
	return &WalletRepository{db: db}
}

// ValidateAddress validates an EVM address (0x followed by 40 hex characters)
func ValidateAddress(address string) error {
	if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return &types.ServiceError{
			Code:    "INVALID_ADDRESS",
			Message: fmt.Sprintf("invalid address format: %s (must be 0x followed by 40 hexadecimal characters)", address),
			Details: map[string]interface{}{
				"address": address,
				"format":  "0x[a-fA-F0-9]{40}",
			},
		}
	}
	return nil
}

const walletColumns = `id, company_id, address, label, balance, auto_scan, last_scanned_at, created_at`

// Create inserts a wallet for a company. The address is stored lower-cased.
func (r *WalletRepository) Create(ctx context.Context, wallet *models.CompanyWallet) error {
	if err := ValidateAddress(wallet.Address); err != nil {
		return err
	}
	wallet.Address = strings.ToLower(wallet.Address)
	if wallet.ID == "" {
		wallet.ID = uuid.New().String()
	}
	wallet.CreatedAt = time.Now().UTC()

	query := `INSERT INTO company_wallets (` + walletColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Pool().Exec(ctx, query,
		wallet.ID,
		wallet.CompanyID,
		wallet.Address,
		wallet.Label,
		wallet.Balance,
		wallet.AutoScan,
		wallet.LastScannedAt,
		wallet.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return internalerrors.NewConflictError("DUPLICATE_WALLET",
				fmt.Sprintf("wallet %s already registered for company", wallet.Address))
		}
		return dbError("create wallet", err)
	}
	return nil
}

// ListByCompany returns the wallets of a company
func (r *WalletRepository) ListByCompany(ctx context.Context, companyID string) ([]*models.CompanyWallet, error) {
	return r.list(ctx, `SELECT `+walletColumns+` FROM company_wallets WHERE company_id = $1 ORDER BY created_at`, companyID)
}

// ListAutoScan returns every wallet flagged for automatic balance refresh
func (r *WalletRepository) ListAutoScan(ctx context.Context) ([]*models.CompanyWallet, error) {
	return r.list(ctx, `SELECT `+walletColumns+` FROM company_wallets WHERE auto_scan ORDER BY last_scanned_at NULLS FIRST`)
}

func (r *WalletRepository) list(ctx context.Context, query string, args ...any) ([]*models.CompanyWallet, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, dbError("list wallets", err)
	}
	defer rows.Close()

	var wallets []*models.CompanyWallet
	for rows.Next() {
		var w models.CompanyWallet
		if err := rows.Scan(
			&w.ID,
			&w.CompanyID,
			&w.Address,
			&w.Label,
			&w.Balance,
			&w.AutoScan,
			&w.LastScannedAt,
			&w.CreatedAt,
		); err != nil {
			return nil, dbError("scan wallet", err)
		}
		wallets = append(wallets, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate wallets", err)
	}
	return wallets, nil
}

// UpdateBalance writes a freshly resolved balance into the wallet cache
func (r *WalletRepository) UpdateBalance(ctx context.Context, walletID string, balance decimal.Decimal, scannedAt time.Time) error {
	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE company_wallets SET balance = $2, last_scanned_at = $3 WHERE id = $1`,
		walletID, balance, scannedAt,
	)
	if err != nil {
		return dbError("update wallet balance", err)
	}
	if tag.RowsAffected() == 0 {
		return &types.ServiceError{Code: "WALLET_NOT_FOUND", Message: fmt.Sprintf("wallet not found: %s", walletID)}
	}
	return nil
}

// Delete removes a wallet from a company
func (r *WalletRepository) Delete(ctx context.Context, companyID, walletID string) error {
	tag, err := r.db.Pool().Exec(ctx,
		`DELETE FROM company_wallets WHERE id = $1 AND company_id = $2`,
		walletID, companyID,
	)
	if err != nil {
		return dbError("delete wallet", err)
	}
	if tag.RowsAffected() == 0 {
		return &types.ServiceError{Code: "WALLET_NOT_FOUND", Message: fmt.Sprintf("wallet not found: %s", walletID)}
	}
	return nil
}
