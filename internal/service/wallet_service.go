package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/adapter"
	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/logging"
	"github.com/eth-reserves/internal/metrics"
	"github.com/eth-reserves/internal/models"
)

// WalletStore persists company wallets and their cached balances
type WalletStore interface {
	Create(ctx context.Context, wallet *models.CompanyWallet) error
	ListByCompany(ctx context.Context, companyID string) ([]*models.CompanyWallet, error)
	ListAutoScan(ctx context.Context) ([]*models.CompanyWallet, error)
	UpdateBalance(ctx context.Context, walletID string, balance decimal.Decimal, scannedAt time.Time) error
	Delete(ctx context.Context, companyID, walletID string) error
}

// WalletInput registers a wallet for a company
type WalletInput struct {
	Address  string `json:"address"`
	Label    string `json:"label"`
	AutoScan *bool  `json:"autoScan,omitempty"`
}

// RefreshSummary counts the outcome of a balance refresh
type RefreshSummary struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// WalletService manages company wallets and refreshes their cached balances.
// The snapshot engine reads the cached sums; it never calls the chain itself.
type WalletService struct {
	wallets     WalletStore
	companies   CompanyLookup
	resolver    adapter.BalanceResolver
	concurrency int
	now         func() time.Time
}

// NewWalletService creates a wallet service
func NewWalletService(wallets WalletStore, companies CompanyLookup, resolver adapter.BalanceResolver, concurrency int) *WalletService {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &WalletService{
		wallets:     wallets,
		companies:   companies,
		resolver:    resolver,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// AddWallet registers an address for a company and resolves its balance once.
// A failed initial lookup leaves the balance at zero until the next refresh.
func (s *WalletService) AddWallet(ctx context.Context, companyID string, input WalletInput) (*models.CompanyWallet, error) {
	address := strings.TrimSpace(input.Address)
	if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return nil, internalerrors.NewInvalidAddressError(address)
	}
	if _, err := s.companies.GetWithWalletSum(ctx, companyID); err != nil {
		return nil, err
	}

	wallet := &models.CompanyWallet{
		CompanyID: companyID,
		Address:   address,
		Label:     strings.TrimSpace(input.Label),
		AutoScan:  input.AutoScan == nil || *input.AutoScan,
	}
	if err := s.wallets.Create(ctx, wallet); err != nil {
		return nil, err
	}

	if s.refreshWallet(ctx, wallet) {
		metrics.WalletRefreshes.WithLabelValues("ok").Inc()
	} else {
		metrics.WalletRefreshes.WithLabelValues("failed").Inc()
	}
	return wallet, nil
}

// RemoveWallet deletes a wallet from a company
func (s *WalletService) RemoveWallet(ctx context.Context, companyID, walletID string) error {
	return s.wallets.Delete(ctx, companyID, walletID)
}

// ListWallets returns a company's wallets
func (s *WalletService) ListWallets(ctx context.Context, companyID string) ([]*models.CompanyWallet, error) {
	if _, err := s.companies.GetWithWalletSum(ctx, companyID); err != nil {
		return nil, err
	}
	return s.wallets.ListByCompany(ctx, companyID)
}

// RefreshAll re-resolves every auto-scanned wallet. Wallets whose lookup fails
// keep their previous balance.
func (s *WalletService) RefreshAll(ctx context.Context) (*RefreshSummary, error) {
	wallets, err := s.wallets.ListAutoScan(ctx)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, wallets), nil
}

// RefreshCompany re-resolves every wallet of one company
func (s *WalletService) RefreshCompany(ctx context.Context, companyID string) (*RefreshSummary, error) {
	wallets, err := s.ListWallets(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, wallets), nil
}

func (s *WalletService) refresh(ctx context.Context, wallets []*models.CompanyWallet) *RefreshSummary {
	summary := &RefreshSummary{Scanned: len(wallets)}
	pool := pond.NewPool(s.concurrency)
	var mu sync.Mutex

	for _, w := range wallets {
		wallet := w
		pool.Submit(func() {
			ok := s.refreshWallet(ctx, wallet)

			mu.Lock()
			defer mu.Unlock()
			if ok {
				summary.Updated++
				metrics.WalletRefreshes.WithLabelValues("ok").Inc()
			} else {
				summary.Failed++
				metrics.WalletRefreshes.WithLabelValues("failed").Inc()
			}
		})
	}
	pool.StopAndWait()

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"scanned": summary.Scanned,
		"updated": summary.Updated,
		"failed":  summary.Failed,
	}).Info("wallet balances refreshed")
	return summary
}

func (s *WalletService) refreshWallet(ctx context.Context, wallet *models.CompanyWallet) bool {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"walletId": wallet.ID,
		"address":  wallet.Address,
	})

	balance, err := s.resolver.ResolveBalance(ctx, wallet.Address)
	if err != nil {
		logger.WithField("errorCode", internalerrors.Categorize(err).Code).WithError(err).Warn("wallet balance lookup failed")
		return false
	}

	scannedAt := s.now().UTC()
	if err := s.wallets.UpdateBalance(ctx, wallet.ID, balance, scannedAt); err != nil {
		logger.WithError(err).Error("failed to store wallet balance")
		return false
	}
	wallet.Balance = balance
	wallet.LastScannedAt = &scannedAt
	return true
}
