package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-tax-engine/internal/domain"
	"wallet-tax-engine/internal/storage"
)

const wallet = "0x1111111111111111111111111111111111111111"

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testTransfer(hash string, logIndex int, at time.Time) *domain.Transfer {
	return &domain.Transfer{
		TxHash:         hash,
		LogIndex:       logIndex,
		ChainID:        "0x1",
		BlockTimestamp: at,
		TokenSymbol:    "TOKEN",
		TokenAddress:   "0x5555555555555555555555555555555555555555",
		Decimals:       18,
		RawAmount:      "115792089237316195423570985008687907853269984665640564039457584007913129639935",
		FromAddress:    domain.NullAddress,
		ToAddress:      wallet,
		WalletAddress:  "0x1111111111111111111111111111111111111111",
	}
}

func TestTransferStore_InsertBulkAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransferStore(pool)

	native := testTransfer("0xc", 0, base.Add(2*time.Hour))
	native.TokenAddress = ""
	native.TokenSymbol = "ETH"

	batch := []*domain.Transfer{
		testTransfer("0xb", 0, base.Add(time.Hour)),
		testTransfer("0xa", 1, base),
		native,
	}
	require.NoError(t, store.InsertBulk(ctx, batch))
	// Re-inserting is a no-op.
	require.NoError(t, store.InsertBulk(ctx, batch))

	got, err := store.GetByWallet(ctx, wallet, "0x1", domain.DateRange{})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "0xa", got[0].TxHash)
	assert.Equal(t, 1, got[0].LogIndex)
	assert.Equal(t, batch[1].RawAmount, got[0].RawAmount)
	assert.True(t, got[0].BlockTimestamp.Equal(base))
	assert.Equal(t, time.UTC, got[0].BlockTimestamp.Location())
	assert.True(t, got[2].IsNative())

	ranged, err := store.GetByWallet(ctx, wallet, "0x1", domain.DateRange{Start: base.Add(time.Minute), End: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "0xb", ranged[0].TxHash)
}

func TestTransferStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	err := NewTransferStore(pool).InsertBulk(context.Background(), []*domain.Transfer{testTransfer("", 0, base)})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestReportStore_SaveAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewReportStore(pool)

	days := 30
	report := &domain.StoredReport{
		Report: domain.TaxReport{
			ReportID:       "report-1",
			Wallet:         wallet,
			ChainID:        "0x1",
			QuoteCurrency:  "EUR",
			PeriodStart:    base,
			TotalROIIncome: 50,
			EstimatedTax:   12.5,
			Categories: map[domain.Category]domain.CategoryTotal{
				domain.CategoryROIIncome: {Count: 1, Value: 50},
			},
			GeneratedAt: base,
		},
		Rows: []domain.DetailRow{{
			RowID:       "row-1",
			Transfer:    *testTransfer("0xa", 0, base),
			PriceSource: domain.PriceSourcePrimary,
			Events: []domain.TaxableEvent{{
				Kind:              domain.EventKindCapitalGain,
				HoldingPeriodDays: &days,
			}},
		}},
	}
	require.NoError(t, store.Save(ctx, report))

	got, err := store.GetByID(ctx, "report-1")
	require.NoError(t, err)
	assert.Equal(t, 12.5, got.Report.EstimatedTax)
	assert.Equal(t, 1, got.Report.Categories[domain.CategoryROIIncome].Count)
	require.Len(t, got.Rows, 1)
	require.Len(t, got.Rows[0].Events, 1)
	assert.Equal(t, 30, *got.Rows[0].Events[0].HoldingPeriodDays)

	// Save replaces.
	report.Report.EstimatedTax = 20
	report.Report.GeneratedAt = base.Add(time.Hour)
	require.NoError(t, store.Save(ctx, report))

	list, err := store.ListByWallet(ctx, wallet)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 20.0, list[0].EstimatedTax)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
