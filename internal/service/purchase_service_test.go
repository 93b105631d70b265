package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/types"
)

func newPurchaseFixture() (*fixture, *PurchaseService) {
	f := newFixture(company(companyA, "Alpha", types.CompanyStatusActive, "100"))
	svc := NewPurchaseService(f.purchases, f.companies, f.reconciler)
	svc.now = fixedNow
	return f, svc
}

func TestRecordPurchase_IncrementsReserveAndRefreshesSnapshot(t *testing.T) {
	f, svc := newPurchaseFixture()

	result, err := svc.RecordPurchase(context.Background(), PurchaseInput{
		CompanyID: companyA,
		Amount:    dec("10"),
		TotalCost: dec("20000"),
		Type:      types.PurchaseTypeBuy,
	})
	require.NoError(t, err)

	assert.True(t, result.CurrentReserve.Equal(dec("110")))
	assert.NotEmpty(t, result.Purchase.ID)
	assert.Equal(t, testNow, result.Purchase.PurchasedAt)

	require.NotNil(t, result.Snapshot)
	assert.True(t, result.Snapshot.Reserve.Equal(dec("110")))
	assert.True(t, result.Snapshot.Day.Equal(testDay))
	require.True(t, result.Snapshot.TotalCostAccumulated.Valid)
	assert.True(t, result.Snapshot.TotalCostAccumulated.Decimal.Equal(dec("20000")))

	stored, err := f.companies.GetByID(context.Background(), companyA)
	require.NoError(t, err)
	assert.True(t, stored.CurrentReserve.Equal(dec("110")))
	assert.Equal(t, 1, f.snapshots.rowsForDay(testDay))
}

func TestRecordPurchase_AccumulatesCostAcrossPurchases(t *testing.T) {
	_, svc := newPurchaseFixture()
	ctx := context.Background()

	_, err := svc.RecordPurchase(ctx, PurchaseInput{CompanyID: companyA, Amount: dec("10"), TotalCost: dec("20000"), Type: types.PurchaseTypeBuy})
	require.NoError(t, err)
	result, err := svc.RecordPurchase(ctx, PurchaseInput{CompanyID: companyA, Amount: dec("0.5"), TotalCost: dec("1"), Type: types.PurchaseTypeYield})
	require.NoError(t, err)

	assert.True(t, result.CurrentReserve.Equal(dec("110.5")))
	assert.True(t, result.Snapshot.TotalCostAccumulated.Decimal.Equal(dec("20001")))
}

func TestRecordPurchase_RejectsInvalidInputWithoutWrites(t *testing.T) {
	future := testNow.Add(time.Hour)

	tests := []struct {
		name  string
		input PurchaseInput
		field string
	}{
		{"negative amount", PurchaseInput{CompanyID: companyA, Amount: dec("-5"), TotalCost: dec("100"), Type: types.PurchaseTypeBuy}, "amount"},
		{"zero cost", PurchaseInput{CompanyID: companyA, Amount: dec("5"), TotalCost: dec("0"), Type: types.PurchaseTypeBuy}, "totalCost"},
		{"unknown type", PurchaseInput{CompanyID: companyA, Amount: dec("5"), TotalCost: dec("100"), Type: "gift"}, "type"},
		{"malformed company id", PurchaseInput{CompanyID: "abc", Amount: dec("5"), TotalCost: dec("100"), Type: types.PurchaseTypeBuy}, "companyId"},
		{"future date", PurchaseInput{CompanyID: companyA, Amount: dec("5"), TotalCost: dec("100"), Type: types.PurchaseTypeBuy, PurchasedAt: &future}, "purchasedAt"},
		{"cost rounds to zero cents", PurchaseInput{CompanyID: companyA, Amount: dec("5"), TotalCost: dec("0.004"), Type: types.PurchaseTypeBuy}, "totalCost"},
		{"fractional cent", PurchaseInput{CompanyID: companyA, Amount: dec("5"), TotalCost: dec("100.005"), Type: types.PurchaseTypeBuy}, "totalCost"},
		{"amount below one wei", PurchaseInput{CompanyID: companyA, Amount: dec("0.0000000000000000001"), TotalCost: dec("100"), Type: types.PurchaseTypeBuy}, "amount"},
		{"amount with 19 decimals", PurchaseInput{CompanyID: companyA, Amount: dec("1.0000000000000000001"), TotalCost: dec("100"), Type: types.PurchaseTypeBuy}, "amount"},
		{"amount overflows column", PurchaseInput{CompanyID: companyA, Amount: dec("100000000000000000000"), TotalCost: dec("100"), Type: types.PurchaseTypeBuy}, "amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, svc := newPurchaseFixture()

			_, err := svc.RecordPurchase(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, internalerrors.IsValidation(err))
			cat := internalerrors.Categorize(err)
			assert.Contains(t, cat.Details, tt.field)

			assert.Empty(t, f.purchases.purchases)
			assert.Zero(t, f.snapshots.upserts)
			stored, _ := f.companies.GetByID(context.Background(), companyA)
			assert.True(t, stored.CurrentReserve.Equal(dec("100")))
		})
	}
}

func TestRecordPurchase_AcceptsTrailingZerosWithinScale(t *testing.T) {
	_, svc := newPurchaseFixture()

	result, err := svc.RecordPurchase(context.Background(), PurchaseInput{
		CompanyID: companyA,
		Amount:    dec("0.000000000000000001"),
		TotalCost: dec("0.0100"),
		Type:      types.PurchaseTypeYield,
	})
	require.NoError(t, err)
	assert.True(t, result.CurrentReserve.Equal(dec("100.000000000000000001")))
}

func TestRecordPurchase_UnknownCompany(t *testing.T) {
	f, svc := newPurchaseFixture()

	_, err := svc.RecordPurchase(context.Background(), PurchaseInput{
		CompanyID: companyB,
		Amount:    dec("1"),
		TotalCost: dec("1"),
		Type:      types.PurchaseTypeBuy,
	})
	assert.True(t, internalerrors.IsNotFound(err))
	assert.Empty(t, f.purchases.purchases)
}

func TestRecordPurchase_SnapshotFailureKeepsPurchase(t *testing.T) {
	f, svc := newPurchaseFixture()
	f.snapshots.failFor[companyA] = true

	result, err := svc.RecordPurchase(context.Background(), PurchaseInput{
		CompanyID: companyA,
		Amount:    dec("10"),
		TotalCost: dec("20000"),
		Type:      types.PurchaseTypeBuy,
	})
	require.NoError(t, err)
	assert.Nil(t, result.Snapshot)
	assert.True(t, result.CurrentReserve.Equal(dec("110")))
	assert.Len(t, f.purchases.purchases, 1)
}

func TestListPurchases(t *testing.T) {
	_, svc := newPurchaseFixture()
	ctx := context.Background()

	_, err := svc.RecordPurchase(ctx, PurchaseInput{CompanyID: companyA, Amount: dec("1"), TotalCost: dec("3000"), Type: types.PurchaseTypeBuy})
	require.NoError(t, err)

	list, err := svc.ListPurchases(ctx, companyA)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.ListPurchases(ctx, companyB)
	assert.True(t, internalerrors.IsNotFound(err))
}
