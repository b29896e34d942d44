// Package features computes per-ticker rolling analytics for
// fact_features_daily.
package features

import (
	"math"

	"market-etl/internal/domain"
)

// Window lengths and constants.
const (
	TradingDaysPerYear = 252

	MAShort  = 20
	MAMedium = 50
	MALong   = 200

	VolShort = 20
	VolLong  = 60

	BollingerWindow = 20
	BollingerWidth  = 2.0

	ATRPeriod = 14
)

var annualization = math.Sqrt(TradingDaysPerYear)

// state carries rolling values from one row to the next within a ticker.
type state struct {
	closes     []float64
	logReturns []float64
	prevClose  float64
	hasPrev    bool
	peak       float64

	atr     *float64
	trSum   float64
	trCount int

	vol60History sortedHistory
}

// Compute folds one ticker's price rows into feature rows, one per input row.
//
// Rows must belong to a single ticker, be strictly ascending by date, and
// carry positive finite closes and finite highs and lows. Violations are
// reported as *domain.ComputationError and no rows are returned.
func Compute(rows []*domain.PriceRow) ([]*domain.FeatureRow, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	if err := validate(rows); err != nil {
		return nil, err
	}

	s := &state{
		closes:     make([]float64, 0, len(rows)),
		logReturns: make([]float64, 0, len(rows)),
	}
	result := make([]*domain.FeatureRow, len(rows))
	for i, r := range rows {
		result[i] = s.step(r)
	}
	return result, nil
}

// step advances the state by one row and returns its features.
func (s *state) step(r *domain.PriceRow) *domain.FeatureRow {
	fr := &domain.FeatureRow{
		Date:   r.Date,
		Ticker: r.Ticker,
	}

	// Returns
	if s.hasPrev {
		fr.Ret1D = ptr((r.Close - s.prevClose) / s.prevClose)
		logRet := math.Log(r.Close / s.prevClose)
		fr.LogRet1D = ptr(logRet)
		s.logReturns = append(s.logReturns, logRet)
	}
	s.closes = append(s.closes, r.Close)

	// Moving averages
	fr.MA20 = trailingMean(s.closes, MAShort)
	fr.MA50 = trailingMean(s.closes, MAMedium)
	fr.MA200 = trailingMean(s.closes, MALong)

	// Volatility: N returns need N+1 prices
	if sd := trailingStdDev(s.logReturns, VolShort); sd != nil {
		fr.Vol20 = ptr(*sd * annualization)
	}
	if sd := trailingStdDev(s.logReturns, VolLong); sd != nil {
		fr.Vol60 = ptr(*sd * annualization)
	}

	// Peak and drawdown
	if !s.hasPrev || r.Close > s.peak {
		s.peak = r.Close
	}
	fr.PeakToDate = s.peak
	fr.DrawdownPct = (r.Close - s.peak) / s.peak

	// Bollinger bands
	if fr.MA20 != nil {
		if sd := trailingStdDev(s.closes, BollingerWindow); sd != nil {
			mid := *fr.MA20
			fr.BBMid20 = ptr(mid)
			fr.BBUp20 = ptr(mid + BollingerWidth*(*sd))
			fr.BBLow20 = ptr(mid - BollingerWidth*(*sd))
		}
	}

	// True range and Wilder ATR
	tr := r.High - r.Low
	if s.hasPrev {
		tr = math.Max(tr, math.Max(math.Abs(r.High-s.prevClose), math.Abs(r.Low-s.prevClose)))
	}
	fr.TrueRange = tr
	if s.atr == nil {
		s.trSum += tr
		s.trCount++
		if s.trCount == ATRPeriod {
			s.atr = ptr(s.trSum / ATRPeriod)
		}
	} else {
		s.atr = ptr(*s.atr + (tr-*s.atr)/ATRPeriod)
	}
	if s.atr != nil {
		fr.ATR14 = ptr(*s.atr)
	}

	// Regimes
	fr.TrendRegime = trendRegime(fr.MA20, fr.MA50, fr.MA200)
	if fr.Vol60 != nil {
		s.vol60History.add(*fr.Vol60)
		fr.VolRegime = volRegime(*fr.Vol60, &s.vol60History)
	}

	s.prevClose = r.Close
	s.hasPrev = true
	return fr
}

func validate(rows []*domain.PriceRow) error {
	if rows[0] == nil {
		return &domain.ComputationError{Reason: "nil row"}
	}
	ticker := rows[0].Ticker
	for i, r := range rows {
		if r == nil {
			return &domain.ComputationError{Ticker: ticker, Reason: "nil row"}
		}
		if r.Ticker != ticker {
			return &domain.ComputationError{Ticker: ticker, Reason: "mixed tickers: " + r.Ticker}
		}
		if i > 0 && !r.Date.After(rows[i-1].Date) {
			return &domain.ComputationError{
				Ticker: ticker,
				Reason: "rows not strictly ascending at " + domain.FormatDate(r.Date),
			}
		}
		if !(r.Close > 0) || math.IsInf(r.Close, 0) {
			return &domain.ComputationError{Ticker: ticker, Reason: "non-positive close at " + domain.FormatDate(r.Date)}
		}
		if math.IsNaN(r.High) || math.IsNaN(r.Low) || math.IsInf(r.High, 0) || math.IsInf(r.Low, 0) {
			return &domain.ComputationError{Ticker: ticker, Reason: "non-finite range at " + domain.FormatDate(r.Date)}
		}
	}
	return nil
}
