package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-etl/internal/domain"
	"market-etl/internal/storage"
)

func priceRow(ticker, date string, px float64, volume *float64) *domain.PriceRow {
	return &domain.PriceRow{
		Date: day(date), Ticker: ticker,
		Open: px - 1, High: px + 1, Low: px - 2, Close: px, AdjClose: px,
		Volume: volume, AssetClass: domain.AssetClassEquity, Currency: "USD",
		Source: "TIME_SERIES_DAILY_ADJUSTED",
	}
}

func TestPriceStore_InsertBulkAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceStore(conn)

	rows := []*domain.PriceRow{
		priceRow("AAPL", "2024-01-03", 103, ptr(1500.0)),
		priceRow("AAPL", "2024-01-02", 102, nil),
		priceRow("MSFT", "2024-01-02", 300, ptr(900.0)),
	}
	require.NoError(t, store.InsertBulk(ctx, rows))

	got, err := store.GetByTicker(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, got[0].Date.Equal(day("2024-01-02")))
	assert.Nil(t, got[0].Volume)
	require.NotNil(t, got[1].Volume)
	assert.Equal(t, 1500.0, *got[1].Volume)
	assert.Equal(t, domain.AssetClassEquity, got[1].AssetClass)
	assert.Equal(t, "TIME_SERIES_DAILY_ADJUSTED", got[1].Source)
}

func TestPriceStore_DuplicateKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceStore(conn)

	rows := []*domain.PriceRow{priceRow("AAPL", "2024-01-02", 102, nil)}
	require.NoError(t, store.InsertBulk(ctx, rows))

	err := store.InsertBulk(ctx, rows)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.InsertBulk(ctx, []*domain.PriceRow{
		priceRow("MSFT", "2024-01-02", 300, nil),
		priceRow("MSFT", "2024-01-02", 301, nil),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByTicker(ctx, "MSFT")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPriceStore_GetByDateRangeAndLatest(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceStore(conn)

	_, err := store.GetLatestDate(ctx, "AAPL")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rows := []*domain.PriceRow{
		priceRow("AAPL", "2024-01-01", 100, nil),
		priceRow("AAPL", "2024-01-02", 101, nil),
		priceRow("AAPL", "2024-01-03", 102, nil),
	}
	require.NoError(t, store.InsertBulk(ctx, rows))

	got, err := store.GetByDateRange(ctx, "AAPL", day("2024-01-02"), day("2024-01-03"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 101.0, got[0].Close)

	latest, err := store.GetLatestDate(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, latest.Equal(day("2024-01-03")))
}
