package features

import "market-etl/internal/domain"

// Tercile cut points for vol_regime.
const (
	volLowQuantile  = 1.0 / 3.0
	volHighQuantile = 2.0 / 3.0
)

// trendRegime classifies the moving-average stack.
// Undefined while any moving average is in warmup.
func trendRegime(ma20, ma50, ma200 *float64) domain.Regime {
	if ma20 == nil || ma50 == nil || ma200 == nil {
		return domain.RegimeNone
	}
	switch {
	case *ma20 > *ma50 && *ma50 > *ma200:
		return domain.TrendUp
	case *ma20 < *ma50 && *ma50 < *ma200:
		return domain.TrendDown
	default:
		return domain.TrendSideways
	}
}

// volRegime buckets vol against the ticker's expanding vol_60 history,
// which must already include vol.
func volRegime(vol float64, history *sortedHistory) domain.Regime {
	low := history.quantile(volLowQuantile)
	high := history.quantile(volHighQuantile)
	switch {
	case vol <= low:
		return domain.VolLow
	case vol >= high:
		return domain.VolHigh
	default:
		return domain.VolMed
	}
}
