package domain

import "time"

// SnapshotRow represents one fact_latest_snapshot row.
// Grain: ticker, keyed at the ticker's latest date.
type SnapshotRow struct {
	Ticker    string
	LastDate  time.Time
	LastClose float64
	Pct1D     *float64 // vs close 1 row back
	Pct1W     *float64 // vs close 5 rows back
	Pct1M     *float64 // vs close 21 rows back
	PctYTD    *float64 // vs first close of the latest row's year
	Vol60     *float64
	MaxDD1Y   *float64 // min drawdown_pct over trailing 252 rows
}
