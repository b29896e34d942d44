// Package pipeline runs one batch of the market data transform:
// extraction → normalization → {calendar, features → snapshot} → tables.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"market-etl/internal/calendar"
	"market-etl/internal/domain"
	"market-etl/internal/extraction"
	"market-etl/internal/features"
	"market-etl/internal/normalization"
	"market-etl/internal/observability"
	"market-etl/internal/recorder"
	"market-etl/internal/snapshot"
)

// Fatal run errors.
var (
	ErrNoTickers          = errors.New("no tickers configured")
	ErrDuplicateTicker    = errors.New("duplicate ticker")
	ErrNoTickersSucceeded = errors.New("no tickers succeeded")
)

// Defaults.
const (
	DefaultWorkers    = 4
	DefaultSourceName = "AlphaVantage"
)

// Options for creating Runner.
type Options struct {
	Source  extraction.Source
	Tickers []domain.Ticker

	DedupPolicy normalization.DedupPolicy
	Workers     int
	SourceName  string // dim_ticker.source

	Logger  *log.Logger
	Verbose bool
}

// Runner executes one ETL batch.
type Runner struct {
	source      extraction.Source
	tickers     []domain.Ticker
	dedupPolicy normalization.DedupPolicy
	workers     int
	sourceName  string
	logger      *log.Logger
	verbose     bool
	clock       func() time.Time
}

// New creates a new Runner.
func New(opts Options) *Runner {
	r := &Runner{
		source:      opts.Source,
		tickers:     append([]domain.Ticker(nil), opts.Tickers...),
		dedupPolicy: opts.DedupPolicy,
		workers:     opts.Workers,
		sourceName:  opts.SourceName,
		logger:      opts.Logger,
		verbose:     opts.Verbose,
		clock:       func() time.Time { return time.Now().UTC() },
	}
	if r.dedupPolicy == "" {
		r.dedupPolicy = normalization.DefaultDedupPolicy
	}
	if r.workers <= 0 {
		r.workers = DefaultWorkers
	}
	if r.sourceName == "" {
		r.sourceName = DefaultSourceName
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	return r
}

// WithClock sets a custom clock function for deterministic run ids.
func (r *Runner) WithClock(clock func() time.Time) *Runner {
	r.clock = clock
	return r
}

// tickerResult is the single message each ticker contributes.
type tickerResult struct {
	ticker   domain.Ticker
	prices   []*domain.PriceRow
	features []*domain.FeatureRow
	snapshot *domain.SnapshotRow
	err      error
}

// Run executes the batch. Per-ticker failures are recorded in the
// metadata; only an empty universe, zero successes, or cancellation fail
// the run.
func (r *Runner) Run(ctx context.Context) (*Tables, error) {
	runStart := time.Now()
	tables, err := r.run(ctx)
	status := "success"
	if err != nil {
		status = "failed"
	}
	observability.RecordRun(status, time.Since(runStart).Seconds())
	if err == nil {
		observability.RecordRunSucceeded(tables.Metadata.RowsWritten, tables.Metadata.RunTimestampUTC.Unix())
	}
	return tables, err
}

func (r *Runner) run(ctx context.Context) (*Tables, error) {
	if len(r.tickers) == 0 {
		return nil, ErrNoTickers
	}
	if err := checkDistinct(r.tickers); err != nil {
		return nil, err
	}
	if r.source == nil {
		return nil, errors.New("pipeline: no extraction source")
	}

	rec := recorder.New(r.clock())
	r.logger.Printf("Run %s: %d tickers, dedup=%s, workers=%d", rec.RunID(), len(r.tickers), r.dedupPolicy, r.workers)

	// Phase A: extract and normalize each ticker.
	phaseStart := time.Now()
	results := make([]tickerResult, len(r.tickers))
	g := new(errgroup.Group)
	g.SetLimit(r.workers)
	for i, t := range r.tickers {
		g.Go(func() error {
			results[i] = r.extractAndNormalize(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	observability.RecordPhase("extract_normalize", time.Since(phaseStart).Seconds())

	// Sync point: reduce in configuration order and fix the date range.
	all := make([]*tickerResult, len(results))
	for i := range results {
		all[i] = &results[i]
	}
	survivors := r.reduce(rec, all)
	if len(survivors) == 0 {
		return nil, fmt.Errorf("%w: %d failed", ErrNoTickersSucceeded, len(results))
	}
	minDate, maxDate, _ := dateRange(survivors)

	// Phase B: calendar alongside per-ticker features and snapshots.
	phaseStart = time.Now()
	var dimDate []*domain.CalendarRow
	calendarDone := make(chan struct{})
	go func() {
		defer close(calendarDone)
		dimDate = calendar.Build(minDate, maxDate)
	}()

	g = new(errgroup.Group)
	g.SetLimit(r.workers)
	for _, res := range survivors {
		g.Go(func() error {
			r.computeFeatures(res)
			return nil
		})
	}
	_ = g.Wait()
	<-calendarDone
	observability.RecordPhase("features", time.Since(phaseStart).Seconds())

	survivors = r.reduce(rec, survivors)
	if len(survivors) == 0 {
		return nil, fmt.Errorf("%w: %d failed", ErrNoTickersSucceeded, len(results))
	}
	if lo, hi, _ := dateRange(survivors); !lo.Equal(minDate) || !hi.Equal(maxDate) {
		r.log("Date range narrowed after computation failures, rebuilding calendar")
		dimDate = calendar.Build(lo, hi)
	}

	for _, res := range survivors {
		rec.Succeeded(res.ticker.Symbol, len(res.prices))
		observability.RecordTickerSucceeded()
	}
	rec.SetAPICalls(r.source.Calls())

	tables := r.assemble(survivors, dimDate, rec.Finalize())
	for name, n := range tables.RowCounts() {
		observability.RecordRows(name, n)
	}

	md := tables.Metadata
	r.logger.Printf("Run %s complete. Success: %d; Failed: %d; Rows: %d; API calls: %d",
		md.RunID, len(md.TickersSucceeded), len(md.TickersFailed), md.RowsWritten, md.APICalls)
	return tables, nil
}

func (r *Runner) extractAndNormalize(ctx context.Context, t domain.Ticker) tickerResult {
	res := tickerResult{ticker: t}

	r.log("Fetching %s (%s)", t.Symbol, t.AssetClass)
	series, err := r.source.Fetch(ctx, t)
	if err != nil {
		var extErr *domain.ExtractionError
		if !errors.As(err, &extErr) {
			err = &domain.ExtractionError{Ticker: t.Symbol, Err: err}
		}
		res.err = err
		return res
	}
	if series == nil {
		res.err = &domain.ExtractionError{Ticker: t.Symbol, Err: extraction.ErrNilSeries}
		return res
	}

	prices, err := normalization.Normalize(t.Symbol, series.Points, r.dedupPolicy)
	if err != nil {
		res.err = err
		return res
	}
	res.prices = prices
	r.log("  %s: %d raw points -> %d price rows", t.Symbol, len(series.Points), len(prices))
	return res
}

// computeFeatures fills features and snapshot, or err on contract violation.
func (r *Runner) computeFeatures(res *tickerResult) {
	feats, err := features.Compute(res.prices)
	if err != nil {
		res.err = err
		return
	}
	snap, err := snapshot.Build(res.prices, feats)
	if err != nil {
		res.err = err
		return
	}
	res.features = feats
	res.snapshot = snap
}

// reduce records failures in order and returns the remaining results.
func (r *Runner) reduce(rec *recorder.Recorder, results []*tickerResult) []*tickerResult {
	var survivors []*tickerResult
	for _, res := range results {
		if res.err != nil {
			stage := domain.FailureStage(res.err)
			r.logger.Printf("Failed to process %s (%s): %v", res.ticker.Symbol, stage, res.err)
			rec.Failed(res.ticker.Symbol, res.err)
			observability.RecordTickerFailed(stage)
			continue
		}
		survivors = append(survivors, res)
	}
	return survivors
}

func (r *Runner) assemble(survivors []*tickerResult, dimDate []*domain.CalendarRow, md *domain.RunMetadata) *Tables {
	ordered := append([]*tickerResult(nil), survivors...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ticker.Symbol < ordered[j].ticker.Symbol
	})

	tables := &Tables{
		DimDate:   dimDate,
		DimTicker: BuildDimTicker(r.tickers, r.sourceName),
		Metadata:  md,
	}
	for _, res := range ordered {
		tables.FactPrices = append(tables.FactPrices, res.prices...)
		tables.FactFeatures = append(tables.FactFeatures, res.features...)
		if res.snapshot != nil {
			tables.FactSnapshot = append(tables.FactSnapshot, res.snapshot)
		}
	}
	return tables
}

// BuildDimTicker maps configured tickers to dim_ticker rows sorted by
// (asset class, group, ticker).
func BuildDimTicker(tickers []domain.Ticker, source string) []*domain.TickerRow {
	rows := make([]*domain.TickerRow, 0, len(tickers))
	for _, t := range tickers {
		rows = append(rows, &domain.TickerRow{
			Ticker:     t.Symbol,
			Name:       t.Name,
			AssetClass: t.AssetClass,
			Group:      t.Group,
			Currency:   t.Currency,
			Source:     source,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.AssetClass != b.AssetClass {
			return a.AssetClass < b.AssetClass
		}
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Ticker < b.Ticker
	})
	return rows
}

func dateRange(results []*tickerResult) (minDate, maxDate time.Time, ok bool) {
	for _, res := range results {
		lo, hi, found := calendar.DateRange(res.prices)
		if !found {
			continue
		}
		if !ok || lo.Before(minDate) {
			minDate = lo
		}
		if !ok || hi.After(maxDate) {
			maxDate = hi
		}
		ok = true
	}
	return minDate, maxDate, ok
}

func checkDistinct(tickers []domain.Ticker) error {
	seen := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		if _, dup := seen[t.Symbol]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateTicker, t.Symbol)
		}
		seen[t.Symbol] = struct{}{}
	}
	return nil
}

func (r *Runner) log(format string, args ...interface{}) {
	if r.verbose {
		r.logger.Printf(format, args...)
	}
}
