package domain

import "time"

// Regime is a categorical bucket of a rolling statistic.
// The zero value means the regime is undefined for the row.
type Regime string

const (
	RegimeNone Regime = ""

	TrendUp       Regime = "Up"
	TrendDown     Regime = "Down"
	TrendSideways Regime = "Sideways"

	VolLow  Regime = "Low"
	VolMed  Regime = "Med"
	VolHigh Regime = "High"
)

// IsSet reports whether the regime is defined.
func (r Regime) IsSet() bool {
	return r != RegimeNone
}

// FeatureRow represents one fact_features_daily row.
// Grain: (date, ticker). NULL fields are inside a warmup window.
type FeatureRow struct {
	Date        time.Time
	Ticker      string
	Ret1D       *float64 // close/prev_close - 1, NULL on first row
	LogRet1D    *float64 // ln(close/prev_close), NULL on first row
	MA20        *float64
	MA50        *float64
	MA200       *float64
	Vol20       *float64 // annualized stddev of log returns, NULL until 21 rows
	Vol60       *float64 // annualized stddev of log returns, NULL until 61 rows
	PeakToDate  float64  // running max of close
	DrawdownPct float64  // close/peak - 1, always <= 0
	BBMid20     *float64
	BBUp20      *float64
	BBLow20     *float64
	TrueRange   float64
	ATR14       *float64 // Wilder smoothed, NULL until 14 rows
	TrendRegime Regime
	VolRegime   Regime
}
