// Package snapshot derives fact_latest_snapshot rows from one ticker's
// price and feature history.
package snapshot

import (
	"time"

	"market-etl/internal/domain"
)

// Lookback offsets counted in trading rows.
const (
	OffsetDay   = 1
	OffsetWeek  = 5
	OffsetMonth = 21

	// MaxDrawdownWindow is the trailing row count for max_dd_1y.
	MaxDrawdownWindow = 252
)

// Build returns the snapshot at the ticker's latest row.
// prices and features must be the aligned, date-ascending output of the
// normalization and feature stages for one ticker. Returns nil when the
// ticker has no rows.
func Build(prices []*domain.PriceRow, features []*domain.FeatureRow) (*domain.SnapshotRow, error) {
	if len(prices) == 0 {
		return nil, nil
	}
	ticker := prices[0].Ticker
	if len(features) != len(prices) {
		return nil, &domain.ComputationError{Ticker: ticker, Reason: "feature rows not aligned with price rows"}
	}

	n := len(prices)
	last := prices[n-1]
	lastFeatures := features[n-1]
	if !lastFeatures.Date.Equal(last.Date) || lastFeatures.Ticker != ticker {
		return nil, &domain.ComputationError{Ticker: ticker, Reason: "feature rows not aligned with price rows"}
	}

	snap := &domain.SnapshotRow{
		Ticker:    ticker,
		LastDate:  last.Date,
		LastClose: last.Close,
		Pct1D:     pctVsOffset(prices, OffsetDay),
		Pct1W:     pctVsOffset(prices, OffsetWeek),
		Pct1M:     pctVsOffset(prices, OffsetMonth),
		PctYTD:    pctYearToDate(prices),
		MaxDD1Y:   maxDrawdown(features, MaxDrawdownWindow),
	}
	if lastFeatures.Vol60 != nil {
		v := *lastFeatures.Vol60
		snap.Vol60 = &v
	}
	return snap, nil
}

// pctVsOffset compares the latest close with the close offset rows back.
func pctVsOffset(prices []*domain.PriceRow, offset int) *float64 {
	n := len(prices)
	if n <= offset {
		return nil
	}
	return pctChange(prices[n-1].Close, prices[n-1-offset].Close)
}

// pctYearToDate compares the latest close with the first close on or after
// January 1 of the latest row's year.
func pctYearToDate(prices []*domain.PriceRow) *float64 {
	last := prices[len(prices)-1]
	yearStart := time.Date(last.Date.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	for _, p := range prices {
		if !p.Date.Before(yearStart) {
			return pctChange(last.Close, p.Close)
		}
	}
	return nil
}

func maxDrawdown(features []*domain.FeatureRow, window int) *float64 {
	from := len(features) - window
	if from < 0 {
		from = 0
	}
	minDD := features[from].DrawdownPct
	for _, f := range features[from+1:] {
		if f.DrawdownPct < minDD {
			minDD = f.DrawdownPct
		}
	}
	return &minDD
}

func pctChange(current, reference float64) *float64 {
	if reference == 0 {
		return nil
	}
	v := current/reference - 1
	return &v
}
