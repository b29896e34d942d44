package domain

import "time"

// RawSeriesPoint is one provider record for a ticker and trading day.
// Supplied by the extraction collaborator; may contain duplicate dates,
// arrive out of order, or omit volume and adjusted close.
type RawSeriesPoint struct {
	Ticker     string
	Date       time.Time
	Open       *float64 // required
	High       *float64 // required
	Low        *float64 // required
	Close      *float64 // required
	AdjClose   *float64 // nil if provider has no adjusted close
	Volume     *float64 // nil if provider does not report volume
	AssetClass AssetClass
	Currency   string
	Source     string
}

// PriceRow represents one fact_prices row.
// Grain: (date, ticker).
type PriceRow struct {
	Date       time.Time // UTC midnight
	Ticker     string
	Open       float64
	High       float64
	Low        float64
	Close      float64
	AdjClose   float64  // equals Close when the provider has none
	Volume     *float64 // NULL for FX, never defaulted to zero
	AssetClass AssetClass
	Currency   string
	Source     string
}
