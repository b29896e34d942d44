// Package loader persists the tables of a run into warehouse stores.
//
// Dimensions and the snapshot are replaced wholesale. Fact tables are
// appended incrementally: a ticker's rows are written only for dates after
// the latest date already stored for it. The run log is append-only.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"market-etl/internal/domain"
	"market-etl/internal/observability"
	"market-etl/internal/pipeline"
	"market-etl/internal/storage"
)

// ErrRunAlreadyLoaded is returned when the run's metadata is already stored.
var ErrRunAlreadyLoaded = errors.New("run already loaded")

// Options configures the loader. A nil store skips its table.
type Options struct {
	Calendar  storage.CalendarStore
	Tickers   storage.TickerStore
	Snapshots storage.SnapshotStore
	Prices    storage.PriceStore
	Features  storage.FeatureStore
	Runs      storage.RunMetadataStore

	Logger  *log.Logger
	Verbose bool
}

// Result reports rows written per table.
type Result struct {
	Rows map[string]int
}

// Loader writes pipeline output into stores.
type Loader struct {
	opts   Options
	logger *log.Logger
}

// New creates a new Loader.
func New(opts Options) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{opts: opts, logger: logger}
}

// Load persists t. Fails with ErrRunAlreadyLoaded before writing anything
// when the run id is already in the run log.
func (l *Loader) Load(ctx context.Context, t *pipeline.Tables) (*Result, error) {
	if t == nil || t.Metadata == nil {
		return nil, fmt.Errorf("load: %w", storage.ErrInvalidInput)
	}

	if l.opts.Runs != nil {
		_, err := l.opts.Runs.GetByID(ctx, t.Metadata.RunID)
		switch {
		case err == nil:
			return nil, fmt.Errorf("%w: %s", ErrRunAlreadyLoaded, t.Metadata.RunID)
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("check run log: %w", err)
		}
	}

	res := &Result{Rows: make(map[string]int)}

	steps := []struct {
		table string
		run   func() (int, error)
	}{
		{pipeline.TableDimDate, func() (int, error) {
			if l.opts.Calendar == nil {
				return 0, nil
			}
			return len(t.DimDate), l.opts.Calendar.ReplaceAll(ctx, t.DimDate)
		}},
		{pipeline.TableDimTicker, func() (int, error) {
			if l.opts.Tickers == nil {
				return 0, nil
			}
			return len(t.DimTicker), l.opts.Tickers.ReplaceAll(ctx, t.DimTicker)
		}},
		{pipeline.TableFactPrices, func() (int, error) {
			if l.opts.Prices == nil {
				return 0, nil
			}
			return l.appendPrices(ctx, t.FactPrices)
		}},
		{pipeline.TableFactFeatures, func() (int, error) {
			if l.opts.Features == nil {
				return 0, nil
			}
			return l.appendFeatures(ctx, t.FactFeatures)
		}},
		{pipeline.TableFactSnapshot, func() (int, error) {
			if l.opts.Snapshots == nil {
				return 0, nil
			}
			return len(t.FactSnapshot), l.opts.Snapshots.ReplaceAll(ctx, t.FactSnapshot)
		}},
		{pipeline.TableETLMetadata, func() (int, error) {
			if l.opts.Runs == nil {
				return 0, nil
			}
			return 1, l.opts.Runs.Insert(ctx, t.Metadata)
		}},
	}

	for _, step := range steps {
		start := time.Now()
		n, err := step.run()
		observability.RecordStoreWrite(step.table, time.Since(start).Seconds(), err)
		if err != nil {
			return res, fmt.Errorf("load %s: %w", step.table, err)
		}
		res.Rows[step.table] = n
		l.log("%s: %d rows written", step.table, n)
	}

	return res, nil
}

// appendPrices writes the rows dated after each ticker's stored latest date.
func (l *Loader) appendPrices(ctx context.Context, rows []*domain.PriceRow) (int, error) {
	cutoffs := make(map[string]*time.Time)
	var fresh []*domain.PriceRow

	for _, r := range rows {
		cutoff, ok := cutoffs[r.Ticker]
		if !ok {
			latest, err := l.opts.Prices.GetLatestDate(ctx, r.Ticker)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return 0, fmt.Errorf("latest stored date of %s: %w", r.Ticker, err)
			}
			if err == nil {
				cutoff = &latest
			}
			cutoffs[r.Ticker] = cutoff
		}
		if cutoff == nil || r.Date.After(*cutoff) {
			fresh = append(fresh, r)
		}
	}

	if err := l.opts.Prices.InsertBulk(ctx, fresh); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

// appendFeatures writes the rows dated after each ticker's stored latest date.
func (l *Loader) appendFeatures(ctx context.Context, rows []*domain.FeatureRow) (int, error) {
	cutoffs := make(map[string]*time.Time)
	var fresh []*domain.FeatureRow

	for _, r := range rows {
		cutoff, ok := cutoffs[r.Ticker]
		if !ok {
			latest, err := l.opts.Features.GetLatestDate(ctx, r.Ticker)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return 0, fmt.Errorf("latest stored date of %s: %w", r.Ticker, err)
			}
			if err == nil {
				cutoff = &latest
			}
			cutoffs[r.Ticker] = cutoff
		}
		if cutoff == nil || r.Date.After(*cutoff) {
			fresh = append(fresh, r)
		}
	}

	if err := l.opts.Features.InsertBulk(ctx, fresh); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

func (l *Loader) log(format string, args ...interface{}) {
	if l.opts.Verbose {
		l.logger.Printf(format, args...)
	}
}
