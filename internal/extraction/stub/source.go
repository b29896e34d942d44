// Package stub provides an in-memory extraction.Source for tests and
// offline runs.
package stub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"market-etl/internal/domain"
	"market-etl/internal/extraction"
)

// ErrNoSeries is returned for tickers the stub has no data for.
var ErrNoSeries = errors.New("no series configured")

// Source returns fixed in-memory series.
// Implements extraction.Source interface.
type Source struct {
	mu       sync.RWMutex
	series   map[string][]domain.RawSeriesPoint
	failures map[string]error
	calls    atomic.Int64
}

var _ extraction.Source = (*Source)(nil)

// NewSource creates an empty stub source.
func NewSource() *Source {
	return &Source{
		series:   make(map[string][]domain.RawSeriesPoint),
		failures: make(map[string]error),
	}
}

// WithSeries registers points for a ticker, replacing earlier ones.
func (s *Source) WithSeries(ticker string, points []domain.RawSeriesPoint) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[ticker] = append([]domain.RawSeriesPoint(nil), points...)
	return s
}

// WithFailure makes Fetch fail for a ticker.
func (s *Source) WithFailure(ticker string, err error) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[ticker] = err
	return s
}

// Fetch returns a copy of the registered points. Every fetch counts as one call.
func (s *Source) Fetch(ctx context.Context, ticker domain.Ticker) (*extraction.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.calls.Add(1)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err, ok := s.failures[ticker.Symbol]; ok {
		return nil, &domain.ExtractionError{Ticker: ticker.Symbol, Err: err}
	}
	points, ok := s.series[ticker.Symbol]
	if !ok {
		return nil, &domain.ExtractionError{Ticker: ticker.Symbol, Err: ErrNoSeries}
	}
	return &extraction.Series{
		Ticker: ticker.Symbol,
		Points: append([]domain.RawSeriesPoint(nil), points...),
	}, nil
}

// Calls returns the number of Fetch invocations.
func (s *Source) Calls() int {
	return int(s.calls.Load())
}
