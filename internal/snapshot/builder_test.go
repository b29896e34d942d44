package snapshot

import (
	"errors"
	"math"
	"testing"
	"time"

	"market-etl/internal/domain"
	"market-etl/internal/features"
)

func rowsFrom(start time.Time, closes ...float64) []*domain.PriceRow {
	rows := make([]*domain.PriceRow, len(closes))
	for i, c := range closes {
		rows[i] = &domain.PriceRow{
			Date:     start.AddDate(0, 0, i),
			Ticker:   "QQQ",
			Open:     c,
			High:     c,
			Low:      c,
			Close:    c,
			AdjClose: c,
		}
	}
	return rows
}

func build(t *testing.T, prices []*domain.PriceRow) *domain.SnapshotRow {
	t.Helper()
	feats, err := features.Compute(prices)
	if err != nil {
		t.Fatalf("compute features: %v", err)
	}
	snap, err := Build(prices, feats)
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}
	return snap
}

func approxPtr(t *testing.T, name string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Errorf("%s: expected %v, got NULL", name, want)
		return
	}
	if math.Abs(*got-want) > 1e-9 {
		t.Errorf("%s: expected %v, got %v", name, want, *got)
	}
}

func TestBuild_NoRows(t *testing.T) {
	snap, err := Build(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap != nil {
		t.Errorf("expected no snapshot, got %+v", snap)
	}
}

func TestBuild_Pct1D(t *testing.T) {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	snap := build(t, rowsFrom(start, 100, 110))

	approxPtr(t, "pct_1d", snap.Pct1D, 0.10)
	if snap.Pct1W != nil || snap.Pct1M != nil {
		t.Error("expected NULL pct_1w/pct_1m with insufficient history")
	}
	if snap.LastClose != 110 || !snap.LastDate.Equal(start.AddDate(0, 0, 1)) {
		t.Errorf("unexpected latest row: %v %v", snap.LastDate, snap.LastClose)
	}
}

func TestBuild_OffsetsCountRows(t *testing.T) {
	closes := make([]float64, 22)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	snap := build(t, rowsFrom(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), closes...))

	approxPtr(t, "pct_1d", snap.Pct1D, 121.0/120.0-1)
	approxPtr(t, "pct_1w", snap.Pct1W, 121.0/116.0-1)
	approxPtr(t, "pct_1m", snap.Pct1M, 121.0/100.0-1)
}

func TestBuild_PctYTD(t *testing.T) {
	// Dec 30, Dec 31, Jan 1 (holiday gap is irrelevant), Jan 2, Jan 3.
	start := time.Date(2023, 12, 30, 0, 0, 0, 0, time.UTC)
	prices := rowsFrom(start, 90, 95, 100, 105, 120)
	// Drop Jan 1 so the first row of the year is Jan 2.
	prices = append(prices[:2], prices[3:]...)

	snap := build(t, prices)
	approxPtr(t, "pct_ytd", snap.PctYTD, 120.0/105.0-1)
}

func TestBuild_PctYTDFirstRowOfYear(t *testing.T) {
	start := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	snap := build(t, rowsFrom(start, 90, 100))
	approxPtr(t, "pct_ytd", snap.PctYTD, 0)
}

func TestBuild_MaxDrawdownTrailingWindow(t *testing.T) {
	// A deep early drawdown that falls outside the trailing 252 rows.
	closes := []float64{100, 50}
	for i := 0; i < 251; i++ {
		closes = append(closes, 100)
	}
	closes = append(closes, 90)

	snap := build(t, rowsFrom(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), closes...))
	approxPtr(t, "max_dd_1y", snap.MaxDD1Y, -0.10)
}

func TestBuild_MaxDrawdownShortHistory(t *testing.T) {
	snap := build(t, rowsFrom(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), 100, 80, 90))
	approxPtr(t, "max_dd_1y", snap.MaxDD1Y, -0.20)
}

func TestBuild_Vol60CopiedFromLatest(t *testing.T) {
	closes := make([]float64, 70)
	for i := range closes {
		closes[i] = 100
	}
	prices := rowsFrom(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), closes...)
	feats, err := features.Compute(prices)
	if err != nil {
		t.Fatalf("compute features: %v", err)
	}
	snap, err := Build(prices, feats)
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}
	approxPtr(t, "vol_60", snap.Vol60, *feats[len(feats)-1].Vol60)

	short := build(t, prices[:10])
	if short.Vol60 != nil {
		t.Errorf("expected NULL vol_60, got %v", *short.Vol60)
	}
}

func TestBuild_MisalignedInputs(t *testing.T) {
	prices := rowsFrom(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 100, 101)
	feats, err := features.Compute(prices[:1])
	if err != nil {
		t.Fatalf("compute features: %v", err)
	}

	_, err = Build(prices, feats)
	var compErr *domain.ComputationError
	if !errors.As(err, &compErr) {
		t.Fatalf("expected ComputationError, got %v", err)
	}
}
