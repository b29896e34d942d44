package memory

import (
	"context"
	"errors"
	"testing"

	"market-etl/internal/domain"
	"market-etl/internal/storage"
)

func TestFeatureStore_InsertBulkAndGet(t *testing.T) {
	store := NewFeatureStore()
	ctx := context.Background()

	rows := []*domain.FeatureRow{
		{Date: day("2024-01-03"), Ticker: "AAPL", Ret1D: f(0.01), PeakToDate: 101, TrendRegime: domain.TrendUp},
		{Date: day("2024-01-02"), Ticker: "AAPL", PeakToDate: 100},
	}
	if err := store.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTicker(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetByTicker failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(result))
	}
	if result[0].Ret1D != nil {
		t.Errorf("Expected NULL ret_1d on first row, got %v", *result[0].Ret1D)
	}
	if result[1].Ret1D == nil || *result[1].Ret1D != 0.01 {
		t.Errorf("Expected ret_1d 0.01 on second row, got %v", result[1].Ret1D)
	}
	if result[1].TrendRegime != domain.TrendUp {
		t.Errorf("Expected trend regime Up, got %q", result[1].TrendRegime)
	}

	// mutating a returned row must not leak into the store
	*result[1].Ret1D = 5
	again, _ := store.GetByTicker(ctx, "AAPL")
	if *again[1].Ret1D != 0.01 {
		t.Errorf("Expected stored ret_1d 0.01, got %v", *again[1].Ret1D)
	}
}

func TestFeatureStore_DuplicateKey(t *testing.T) {
	store := NewFeatureStore()
	ctx := context.Background()

	rows := []*domain.FeatureRow{{Date: day("2024-01-02"), Ticker: "AAPL"}}
	if err := store.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.InsertBulk(ctx, rows); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestFeatureStore_GetLatestDate(t *testing.T) {
	store := NewFeatureStore()
	ctx := context.Background()

	if _, err := store.GetLatestDate(ctx, "AAPL"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	rows := []*domain.FeatureRow{
		{Date: day("2024-01-02"), Ticker: "AAPL"},
		{Date: day("2024-01-09"), Ticker: "AAPL"},
	}
	if err := store.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	latest, err := store.GetLatestDate(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetLatestDate failed: %v", err)
	}
	if !latest.Equal(day("2024-01-09")) {
		t.Errorf("Expected 2024-01-09, got %v", latest)
	}
}
