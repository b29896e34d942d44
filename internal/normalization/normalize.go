package normalization

import (
	"math"

	"market-etl/internal/domain"
)

// Normalize maps one ticker's raw points into canonical fact_prices rows.
//
// Rules:
//   - open/high/low/close are required, finite, and close must be positive
//   - adj_close falls back to close
//   - volume stays NULL when missing or when the asset class does not report it
//   - duplicate dates are resolved by policy
//   - output is sorted by date ASC
//
// Any malformed record fails the whole ticker with *domain.NormalizationError.
func Normalize(ticker string, points []domain.RawSeriesPoint, policy DedupPolicy) ([]*domain.PriceRow, error) {
	if len(points) == 0 {
		return nil, &domain.NormalizationError{Ticker: ticker, Reason: "empty series"}
	}

	rows := make([]*domain.PriceRow, 0, len(points))
	for i := range points {
		row, err := toPriceRow(ticker, &points[i])
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	rows = deduplicate(rows, policy)
	SortPriceRows(rows)
	return rows, nil
}

func toPriceRow(ticker string, p *domain.RawSeriesPoint) (*domain.PriceRow, error) {
	fail := func(reason string) error {
		date := ""
		if !p.Date.IsZero() {
			date = domain.FormatDate(p.Date)
		}
		return &domain.NormalizationError{Ticker: ticker, Date: date, Reason: reason}
	}

	if p.Ticker != "" && p.Ticker != ticker {
		return nil, fail("record belongs to " + p.Ticker)
	}
	if p.Date.IsZero() {
		return nil, fail("missing date")
	}

	open, ok := required(p.Open)
	if !ok {
		return nil, fail("missing or invalid open")
	}
	high, ok := required(p.High)
	if !ok {
		return nil, fail("missing or invalid high")
	}
	low, ok := required(p.Low)
	if !ok {
		return nil, fail("missing or invalid low")
	}
	closePx, ok := required(p.Close)
	if !ok {
		return nil, fail("missing or invalid close")
	}
	if closePx <= 0 {
		return nil, fail("non-positive close")
	}

	adjClose := closePx
	if v, ok := required(p.AdjClose); ok {
		adjClose = v
	}

	var volume *float64
	if p.AssetClass.ReportsVolume() {
		if v, ok := required(p.Volume); ok {
			volume = &v
		}
	}

	return &domain.PriceRow{
		Date:       domain.TruncateDate(p.Date),
		Ticker:     ticker,
		Open:       open,
		High:       high,
		Low:        low,
		Close:      closePx,
		AdjClose:   adjClose,
		Volume:     volume,
		AssetClass: p.AssetClass,
		Currency:   p.Currency,
		Source:     p.Source,
	}, nil
}

// required dereferences v if it is present and finite.
func required(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}
