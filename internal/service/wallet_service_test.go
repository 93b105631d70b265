package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/models"
	"github.com/eth-reserves/internal/types"
)

type fakeWalletStore struct {
	mu      sync.Mutex
	wallets map[string]*models.CompanyWallet
}

func newFakeWalletStore(wallets ...*models.CompanyWallet) *fakeWalletStore {
	s := &fakeWalletStore{wallets: make(map[string]*models.CompanyWallet)}
	for _, w := range wallets {
		s.wallets[w.ID] = w
	}
	return s
}

func (s *fakeWalletStore) Create(ctx context.Context, w *models.CompanyWallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Address = strings.ToLower(w.Address)
	for _, existing := range s.wallets {
		if existing.CompanyID == w.CompanyID && existing.Address == w.Address {
			return internalerrors.NewConflictError("DUPLICATE_WALLET", "wallet already registered")
		}
	}
	w.ID = fmt.Sprintf("wallet-%d", len(s.wallets)+1)
	s.wallets[w.ID] = w
	return nil
}

func (s *fakeWalletStore) ListByCompany(ctx context.Context, companyID string) ([]*models.CompanyWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CompanyWallet
	for _, w := range s.wallets {
		if w.CompanyID == companyID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *fakeWalletStore) ListAutoScan(ctx context.Context) ([]*models.CompanyWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CompanyWallet
	for _, w := range s.wallets {
		if w.AutoScan {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *fakeWalletStore) UpdateBalance(ctx context.Context, walletID string, balance decimal.Decimal, scannedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return errors.New("no such wallet")
	}
	w.Balance = balance
	w.LastScannedAt = &scannedAt
	return nil
}

func (s *fakeWalletStore) Delete(ctx context.Context, companyID, walletID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok || w.CompanyID != companyID {
		return &types.ServiceError{Code: "WALLET_NOT_FOUND", Message: "wallet not found"}
	}
	delete(s.wallets, walletID)
	return nil
}

func (s *fakeWalletStore) balance(id string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallets[id].Balance
}

type fakeBalances struct {
	balances map[string]decimal.Decimal
}

func (b *fakeBalances) ResolveBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if bal, ok := b.balances[strings.ToLower(address)]; ok {
		return bal, nil
	}
	return decimal.Zero, errors.New("all networks failed")
}

const (
	addrOne   = "0x00000000219ab540356cbb839cbe05303d7705fa"
	addrTwo   = "0xbe0eb53f46cd790cd13851d5eff43d12404d33e8"
	addrThree = "0x40b38765696e3d5d8d9d834d8aad4bb6e418e489"
)

func newWalletFixture(wallets ...*models.CompanyWallet) (*fakeWalletStore, *fakeBalances, *WalletService) {
	companies := newFakeCompanyStore(company(companyA, "Alpha", types.CompanyStatusActive, "0"))
	store := newFakeWalletStore(wallets...)
	balances := &fakeBalances{balances: map[string]decimal.Decimal{
		addrOne: dec("1200.5"),
		addrTwo: dec("30"),
	}}
	svc := NewWalletService(store, companies, balances, 2)
	svc.now = fixedNow
	return store, balances, svc
}

func TestRefreshAll_UpdatesAutoScanWallets(t *testing.T) {
	store, _, svc := newWalletFixture(
		&models.CompanyWallet{ID: "w1", CompanyID: companyA, Address: addrOne, AutoScan: true},
		&models.CompanyWallet{ID: "w2", CompanyID: companyA, Address: addrTwo, AutoScan: false, Balance: dec("7")},
		&models.CompanyWallet{ID: "w3", CompanyID: companyA, Address: addrThree, AutoScan: true, Balance: dec("55")},
	)

	summary, err := svc.RefreshAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &RefreshSummary{Scanned: 2, Updated: 1, Failed: 1}, summary)
	assert.True(t, store.balance("w1").Equal(dec("1200.5")))
	assert.True(t, store.balance("w2").Equal(dec("7")), "manual wallets are not scanned")
	assert.True(t, store.balance("w3").Equal(dec("55")), "failed lookups keep the stale balance")
}

func TestRefreshCompany_IncludesManualWallets(t *testing.T) {
	store, _, svc := newWalletFixture(
		&models.CompanyWallet{ID: "w2", CompanyID: companyA, Address: addrTwo, AutoScan: false},
	)

	summary, err := svc.RefreshCompany(context.Background(), companyA)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	assert.True(t, store.balance("w2").Equal(dec("30")))

	_, err = svc.RefreshCompany(context.Background(), companyB)
	assert.True(t, internalerrors.IsNotFound(err))
}

func TestAddWallet(t *testing.T) {
	store, _, svc := newWalletFixture()
	ctx := context.Background()

	w, err := svc.AddWallet(ctx, companyA, WalletInput{Address: " 0x00000000219ab540356CBB839Cbe05303d7705Fa ", Label: "deposit"})
	require.NoError(t, err)
	assert.Equal(t, addrOne, w.Address)
	assert.True(t, w.AutoScan)
	assert.True(t, store.balance(w.ID).Equal(dec("1200.5")))
	require.NotNil(t, w.LastScannedAt)

	_, err = svc.AddWallet(ctx, companyA, WalletInput{Address: addrOne})
	assert.Equal(t, 409, internalerrors.Categorize(err).StatusCode, "duplicate wallet")
}

func TestAddWallet_LookupFailureStillRegisters(t *testing.T) {
	store, _, svc := newWalletFixture()
	off := false

	w, err := svc.AddWallet(context.Background(), companyA, WalletInput{Address: addrThree, AutoScan: &off})
	require.NoError(t, err)
	assert.False(t, w.AutoScan)
	assert.True(t, store.balance(w.ID).IsZero())
	assert.Nil(t, w.LastScannedAt)
}

func TestAddWallet_Rejects(t *testing.T) {
	_, _, svc := newWalletFixture()
	ctx := context.Background()

	for _, addr := range []string{"", "0x123", "00000000219ab540356cbb839cbe05303d7705fa", "0xZZ000000219ab540356cbb839cbe05303d7705fa"} {
		_, err := svc.AddWallet(ctx, companyA, WalletInput{Address: addr})
		require.Error(t, err, addr)
		assert.Equal(t, 400, internalerrors.Categorize(err).StatusCode, addr)
	}

	_, err := svc.AddWallet(ctx, companyB, WalletInput{Address: addrOne})
	assert.True(t, internalerrors.IsNotFound(err))
}

func TestRemoveWallet(t *testing.T) {
	store, _, svc := newWalletFixture(&models.CompanyWallet{ID: "w1", CompanyID: companyA, Address: addrOne})
	ctx := context.Background()

	require.NoError(t, svc.RemoveWallet(ctx, companyA, "w1"))
	assert.Empty(t, store.wallets)
	assert.True(t, internalerrors.IsNotFound(svc.RemoveWallet(ctx, companyA, "w1")))
}
