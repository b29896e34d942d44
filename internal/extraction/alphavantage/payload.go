package alphavantage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"market-etl/internal/domain"
)

// Query functions, also used as the source tag of parsed points.
const (
	FunctionDailyAdjusted = "TIME_SERIES_DAILY_ADJUSTED"
	FunctionDaily         = "TIME_SERIES_DAILY"
	FunctionFXDaily       = "FX_DAILY"
	FunctionCryptoDaily   = "DIGITAL_CURRENCY_DAILY"

	DefaultMarket = "USD"
)

// Top-level payload keys.
const (
	keyInformation  = "Information"
	keyNote         = "Note"
	keyErrorMessage = "Error Message"

	keySourceFunction = "source_function"
	keySymbol         = "symbol"
	keyMarket         = "market"

	keyEquitySeries = "Time Series (Daily)"
	keyFXSeries     = "Time Series FX (Daily)"
	keyCryptoSeries = "Time Series (Digital Currency Daily)"
)

// Payload is a provider response kept as raw JSON per top-level key, plus
// the request annotations written by the client.
type Payload map[string]json.RawMessage

func (p Payload) has(key string) bool {
	_, ok := p[key]
	return ok
}

// text returns a string-valued key.
func (p Payload) text(key string) (string, bool) {
	raw, ok := p[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw), true
	}
	return s, true
}

func (p Payload) setText(key, value string) {
	raw, _ := json.Marshal(value)
	p[key] = raw
}

func (p Payload) annotate(function, symbol, market string) {
	p.setText(keySourceFunction, function)
	p.setText(keySymbol, symbol)
	if market != "" {
		p.setText(keyMarket, market)
	}
}

// dailySeries maps date strings to metric name/value pairs.
type dailySeries map[string]map[string]string

func (p Payload) series(key string) (dailySeries, error) {
	raw, ok := p[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrUnexpectedPayload, key)
	}
	var s dailySeries
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: decode %q: %v", ErrUnexpectedPayload, key, err)
	}
	return s, nil
}

// equitySeriesKey finds the daily series, falling back to the first key
// mentioning a time series.
func (p Payload) equitySeriesKey() string {
	if p.has(keyEquitySeries) {
		return keyEquitySeries
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		if strings.Contains(k, "Time Series") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return keyEquitySeries
	}
	return keys[0]
}

// ParsePayload converts a payload into raw points for ticker, sorted by date.
// Missing metrics stay nil; the normalizer decides whether that is fatal.
func ParsePayload(p Payload, ticker domain.Ticker) ([]domain.RawSeriesPoint, error) {
	var (
		points []domain.RawSeriesPoint
		err    error
	)
	switch ticker.AssetClass {
	case domain.AssetClassEquity:
		points, err = parseEquity(p, ticker)
	case domain.AssetClassFX:
		points, err = parseFX(p, ticker)
	case domain.AssetClassCrypto:
		points, err = parseCrypto(p, ticker)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAssetClass, ticker.AssetClass)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	return points, nil
}

func parseEquity(p Payload, ticker domain.Ticker) ([]domain.RawSeriesPoint, error) {
	series, err := p.series(p.equitySeriesKey())
	if err != nil {
		return nil, err
	}
	source := sourceOf(p, FunctionDaily)

	return collect(series, ticker, func(m map[string]string, pt *domain.RawSeriesPoint) error {
		var err error
		if pt.Open, err = field(m, "1. open"); err != nil {
			return err
		}
		if pt.High, err = field(m, "2. high"); err != nil {
			return err
		}
		if pt.Low, err = field(m, "3. low"); err != nil {
			return err
		}
		if pt.Close, err = field(m, "4. close"); err != nil {
			return err
		}
		if pt.AdjClose, err = field(m, "5. adjusted close"); err != nil {
			return err
		}
		if pt.Volume, err = field(m, "6. volume", "5. volume"); err != nil {
			return err
		}
		pt.Currency = ticker.Currency
		pt.Source = source
		return nil
	})
}

func parseFX(p Payload, ticker domain.Ticker) ([]domain.RawSeriesPoint, error) {
	series, err := p.series(keyFXSeries)
	if err != nil {
		return nil, err
	}
	source := sourceOf(p, FunctionFXDaily)

	return collect(series, ticker, func(m map[string]string, pt *domain.RawSeriesPoint) error {
		var err error
		if pt.Open, err = field(m, "1. open"); err != nil {
			return err
		}
		if pt.High, err = field(m, "2. high"); err != nil {
			return err
		}
		if pt.Low, err = field(m, "3. low"); err != nil {
			return err
		}
		if pt.Close, err = field(m, "4. close"); err != nil {
			return err
		}
		pt.Currency = ticker.Currency
		pt.Source = source
		return nil
	})
}

func parseCrypto(p Payload, ticker domain.Ticker) ([]domain.RawSeriesPoint, error) {
	series, err := p.series(keyCryptoSeries)
	if err != nil {
		return nil, err
	}
	source := sourceOf(p, FunctionCryptoDaily)
	market, ok := p.text(keyMarket)
	if !ok || market == "" {
		market = ticker.Market
	}
	if market == "" {
		market = DefaultMarket
	}

	return collect(series, ticker, func(m map[string]string, pt *domain.RawSeriesPoint) error {
		var err error
		if pt.Open, err = field(m, "1a. open ("+market+")", "1. open"); err != nil {
			return err
		}
		if pt.High, err = field(m, "2a. high ("+market+")", "2. high"); err != nil {
			return err
		}
		if pt.Low, err = field(m, "3a. low ("+market+")", "3. low"); err != nil {
			return err
		}
		if pt.Close, err = field(m, "4a. close ("+market+")", "4. close"); err != nil {
			return err
		}
		if pt.Volume, err = field(m, "5. volume"); err != nil {
			return err
		}
		pt.Currency = market
		pt.Source = source
		return nil
	})
}

// collect builds one point per series entry. Entries are visited in
// ascending order of their raw date keys; that order is the ingestion order
// seen by deduplication when two keys name the same date.
func collect(series dailySeries, ticker domain.Ticker, fill func(map[string]string, *domain.RawSeriesPoint) error) ([]domain.RawSeriesPoint, error) {
	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	points := make([]domain.RawSeriesPoint, 0, len(series))
	for _, dateStr := range keys {
		metrics := series[dateStr]
		date, err := domain.ParseDate(strings.TrimSpace(dateStr))
		if err != nil {
			return nil, fmt.Errorf("%w: bad date %q", ErrUnexpectedPayload, dateStr)
		}
		pt := domain.RawSeriesPoint{
			Ticker:     ticker.Symbol,
			Date:       date,
			AssetClass: ticker.AssetClass,
		}
		if err := fill(metrics, &pt); err != nil {
			return nil, fmt.Errorf("%s: %w", dateStr, err)
		}
		points = append(points, pt)
	}
	return points, nil
}

// field parses the first present key. Only plain decimal notation is
// accepted, so tokens like "NaN", "Inf" or hex floats are rejected as
// malformed payload; the validated value is then converted to float64.
func field(metrics map[string]string, keys ...string) (*float64, error) {
	for _, k := range keys {
		s, ok := metrics[k]
		if !ok {
			continue
		}
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrUnexpectedPayload, k, err)
		}
		v := d.InexactFloat64()
		return &v, nil
	}
	return nil, nil
}

func sourceOf(p Payload, fallback string) string {
	if s, ok := p.text(keySourceFunction); ok && s != "" {
		return s
	}
	return fallback
}
