// Package extraction defines the contract between the transform core and
// upstream price providers.
package extraction

import (
	"context"
	"errors"

	"market-etl/internal/domain"
)

// ErrNilSeries is reported when a source returns neither a series nor an
// error.
var ErrNilSeries = errors.New("source returned no series")

// Series is one ticker's raw history as supplied by a provider.
// Points may be unordered and may repeat dates.
type Series struct {
	Ticker string
	Points []domain.RawSeriesPoint
}

// Source supplies raw series per configured ticker.
type Source interface {
	// Fetch returns the raw series for a ticker. Errors are per ticker and
	// never abort the run. A nil series with a nil error is treated as
	// ErrNilSeries.
	Fetch(ctx context.Context, ticker domain.Ticker) (*Series, error)

	// Calls reports upstream API calls made so far.
	Calls() int
}
