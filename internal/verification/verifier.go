// Package verification reconciles warehouse fact rows with a fresh run.
// Stored history that no longer matches the recomputed series (for
// example after a provider revised an adjusted close) is reported field
// by field.
package verification

import (
	"fmt"
	"math"

	"market-etl/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-9

// FieldDivergence represents a mismatch between stored and computed values.
type FieldDivergence struct {
	Field    string      // column name
	Expected interface{} // stored value
	Actual   interface{} // computed value
}

// diff accumulates divergences for one row.
type diff []FieldDivergence

func (d *diff) text(field, stored, computed string) {
	if stored != computed {
		*d = append(*d, FieldDivergence{Field: field, Expected: stored, Actual: computed})
	}
}

func (d *diff) float(field string, stored, computed float64) {
	if !floatEquals(stored, computed) {
		*d = append(*d, FieldDivergence{Field: field, Expected: stored, Actual: computed})
	}
}

func (d *diff) optional(field string, stored, computed *float64) {
	if !floatPtrEquals(stored, computed) {
		*d = append(*d, FieldDivergence{Field: field, Expected: describe(stored), Actual: describe(computed)})
	}
}

// ComparePriceRows compares two fact_prices rows of the same key.
func ComparePriceRows(stored, computed *domain.PriceRow) []FieldDivergence {
	var d diff
	d.float("open", stored.Open, computed.Open)
	d.float("high", stored.High, computed.High)
	d.float("low", stored.Low, computed.Low)
	d.float("close", stored.Close, computed.Close)
	d.float("adj_close", stored.AdjClose, computed.AdjClose)
	d.optional("volume", stored.Volume, computed.Volume)
	d.text("asset_class", string(stored.AssetClass), string(computed.AssetClass))
	d.text("currency", stored.Currency, computed.Currency)
	d.text("source", stored.Source, computed.Source)
	return d
}

// CompareFeatureRows compares two fact_features_daily rows of the same key.
func CompareFeatureRows(stored, computed *domain.FeatureRow) []FieldDivergence {
	var d diff
	d.optional("ret_1d", stored.Ret1D, computed.Ret1D)
	d.optional("log_ret_1d", stored.LogRet1D, computed.LogRet1D)
	d.optional("ma_20", stored.MA20, computed.MA20)
	d.optional("ma_50", stored.MA50, computed.MA50)
	d.optional("ma_200", stored.MA200, computed.MA200)
	d.optional("vol_20", stored.Vol20, computed.Vol20)
	d.optional("vol_60", stored.Vol60, computed.Vol60)
	d.float("peak_to_date", stored.PeakToDate, computed.PeakToDate)
	d.float("drawdown_pct", stored.DrawdownPct, computed.DrawdownPct)
	d.optional("bb_mid_20", stored.BBMid20, computed.BBMid20)
	d.optional("bb_up_20", stored.BBUp20, computed.BBUp20)
	d.optional("bb_low_20", stored.BBLow20, computed.BBLow20)
	d.float("true_range", stored.TrueRange, computed.TrueRange)
	d.optional("atr_14", stored.ATR14, computed.ATR14)
	d.text("trend_regime", string(stored.TrendRegime), string(computed.TrendRegime))
	d.text("vol_regime", string(stored.VolRegime), string(computed.VolRegime))
	return d
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}

// floatPtrEquals compares two *float64 values within FloatTolerance.
// Returns true if both are nil, or both are non-nil and equal.
func floatPtrEquals(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return floatEquals(*a, *b)
}

func describe(v *float64) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(*v)
}
