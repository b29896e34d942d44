// Package main runs one market ETL batch: extract daily series, build the
// dimensional dataset, write CSVs and optionally load the warehouse.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"market-etl/internal/config"
	"market-etl/internal/domain"
	"market-etl/internal/export"
	"market-etl/internal/extraction"
	"market-etl/internal/extraction/alphavantage"
	"market-etl/internal/loader"
	"market-etl/internal/normalization"
	"market-etl/internal/observability"
	"market-etl/internal/pipeline"
	"market-etl/internal/recorder"
	chstore "market-etl/internal/storage/clickhouse"
	"market-etl/internal/storage/migrations"
	pgstore "market-etl/internal/storage/postgres"
	"market-etl/internal/verification"
)

func main() {
	envFile := flag.String("env", ".env", "Dotenv file to load before reading the environment")
	tickersPath := flag.String("tickers", "", "Ticker config YAML (overrides ETL_TICKER_CONFIG_PATH)")
	fixtures := flag.String("fixtures", "", "Replay archived raw payloads from this directory instead of calling the API")
	workbook := flag.Bool("workbook", false, "Also write an .xlsx workbook with one sheet per table")
	reconcile := flag.Bool("reconcile", false, "After loading, compare stored fact rows with this run's output")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	logger := log.New(os.Stdout, "[etl] ", log.LstdFlags|log.Lshortfile)

	settings, err := config.LoadSettings(*envFile)
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}
	if *tickersPath != "" {
		settings.TickerConfigPath = *tickersPath
	}
	if *workbook {
		settings.Workbook = true
	}

	if settings.MetricsAddr != "" {
		go serveMetrics(logger, settings.MetricsAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling run...", sig)
		cancel()
	}()

	if err := run(ctx, logger, settings, *fixtures, *reconcile, *verbose); err != nil {
		logger.Fatalf("Run failed: %v", err)
	}
}

func run(ctx context.Context, logger *log.Logger, settings *config.Settings, fixtures string, reconcile, verbose bool) error {
	tickers, err := config.LoadTickers(settings.TickerConfigPath)
	if err != nil {
		return err
	}
	policy, err := normalization.ParseDedupPolicy(settings.DedupPolicy)
	if err != nil {
		return err
	}

	startedAt := time.Now().UTC()
	runID := recorder.RunID(startedAt)

	source, err := buildSource(logger, settings, fixtures, runID)
	if err != nil {
		return err
	}

	logger.Printf("Run %s: %d tickers, dedup policy %s", runID, len(tickers), policy)

	runner := pipeline.New(pipeline.Options{
		Source:      source,
		Tickers:     tickers,
		DedupPolicy: policy,
		Workers:     settings.Workers,
		SourceName:  settings.SourceName,
		Logger:      log.New(os.Stdout, "[pipeline] ", log.LstdFlags|log.Lshortfile),
		Verbose:     verbose,
	}).WithClock(func() time.Time { return startedAt })

	tables, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	versionDir, err := export.WriteRun(tables, settings.OutputDir, settings.DocsDataDir)
	if err != nil {
		return err
	}
	logger.Printf("CSVs written to %s", versionDir)

	if settings.Workbook {
		path := filepath.Join(versionDir, "market_etl.xlsx")
		if err := export.WriteWorkbook(tables, path); err != nil {
			return err
		}
		logger.Printf("Workbook written to %s", path)
	}

	if settings.PostgresDSN != "" || settings.ClickHouseDSN != "" {
		if err := loadWarehouse(ctx, logger, settings, tables, reconcile, verbose); err != nil {
			return err
		}
	}

	md := tables.Metadata
	logger.Printf("Run %s complete: %d rows, %d succeeded, %d failed, %d API calls",
		md.RunID, md.RowsWritten, len(md.TickersSucceeded), len(md.TickersFailed), md.APICalls)
	if md.Notes != "" {
		logger.Printf("Notes: %s", md.Notes)
	}
	return nil
}

// buildSource returns the fixture replay source when dir is set, otherwise
// the Alpha Vantage client archiving raw payloads under the run id.
func buildSource(logger *log.Logger, settings *config.Settings, dir, runID string) (extraction.Source, error) {
	if dir != "" {
		logger.Printf("Replaying raw payloads from %s", dir)
		return alphavantage.NewReplay(dir), nil
	}

	if err := settings.RequireAPIKey(); err != nil {
		return nil, err
	}

	return alphavantage.NewClient(settings.APIKey,
		alphavantage.WithBaseURL(settings.BaseURL),
		alphavantage.WithTimeout(settings.Timeout),
		alphavantage.WithMinInterval(settings.MinInterval),
		alphavantage.WithMaxRetries(settings.MaxRetries),
		alphavantage.WithBackoff(settings.Backoff),
		alphavantage.WithArchive(alphavantage.NewArchive(settings.RawDataDir, runID)),
		alphavantage.WithLogger(log.New(os.Stdout, "[alphavantage] ", log.LstdFlags|log.Lshortfile)),
	), nil
}

// loadWarehouse migrates and loads whichever warehouses are configured.
func loadWarehouse(ctx context.Context, logger *log.Logger, settings *config.Settings, tables *pipeline.Tables, reconcile, verbose bool) error {
	opts := loader.Options{
		Logger:  log.New(os.Stdout, "[loader] ", log.LstdFlags|log.Lshortfile),
		Verbose: verbose,
	}

	if settings.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, settings.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return err
		}
		opts.Calendar = pgstore.NewCalendarStore(pool)
		opts.Tickers = pgstore.NewTickerStore(pool)
		opts.Snapshots = pgstore.NewSnapshotStore(pool)
		opts.Runs = pgstore.NewRunMetadataStore(pool)
	}

	if settings.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, settings.ClickHouseDSN)
		if err != nil {
			return err
		}
		defer conn.Close()

		opts.Prices = chstore.NewPriceStore(conn)
		opts.Features = chstore.NewFeatureStore(conn)
	}

	res, err := loader.New(opts).Load(ctx, tables)
	if err != nil {
		if errors.Is(err, loader.ErrRunAlreadyLoaded) {
			logger.Printf("Warehouse already holds run %s, skipping load", tables.Metadata.RunID)
			return nil
		}
		return fmt.Errorf("load warehouse: %w", err)
	}

	for _, table := range pipeline.TableNames {
		logger.Printf("Loaded %s: %d rows", table, res.Rows[table])
	}

	if reconcile {
		return reconcileWarehouse(ctx, logger, opts, tables)
	}
	return nil
}

// maxReportedMismatches caps the mismatches logged by reconcileWarehouse.
const maxReportedMismatches = 20

// reconcileWarehouse logs stored fact rows that differ from this run's output.
func reconcileWarehouse(ctx context.Context, logger *log.Logger, opts loader.Options, tables *pipeline.Tables) error {
	report, err := verification.NewReconciler(opts.Prices, opts.Features).Reconcile(ctx, tables)
	if err != nil {
		return fmt.Errorf("reconcile warehouse: %w", err)
	}

	logger.Printf("Reconciled %d rows: %d matched, %d divergent, %d missing",
		report.CheckedRows, report.MatchedRows, report.DivergentRows, report.MissingRows)
	for i, res := range report.Results {
		if i == maxReportedMismatches {
			logger.Printf("... %d more", len(report.Results)-i)
			break
		}
		if res.Missing {
			logger.Printf("  %s %s %s: not stored", res.Table, res.Ticker, domain.FormatDate(res.Date))
			continue
		}
		for _, d := range res.Divergences {
			logger.Printf("  %s %s %s: %s stored=%v computed=%v",
				res.Table, res.Ticker, domain.FormatDate(res.Date), d.Field, d.Expected, d.Actual)
		}
	}
	return nil
}

func serveMetrics(logger *log.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("Metrics server error: %v", err)
	}
}
