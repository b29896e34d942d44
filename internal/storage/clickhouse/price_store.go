package clickhouse

import (
	"context"
	"fmt"
	"time"

	"market-etl/internal/domain"
	"market-etl/internal/storage"
)

// PriceStore implements storage.PriceStore using ClickHouse.
type PriceStore struct {
	conn *Conn
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(conn *Conn) *PriceStore {
	return &PriceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// InsertBulk adds multiple rows. Fails entire batch on duplicate (date, ticker).
func (s *PriceStore) InsertBulk(ctx context.Context, rows []*domain.PriceRow) error {
	if len(rows) == 0 {
		return nil
	}

	byTicker, err := groupDates(len(rows), func(i int) (string, time.Time, bool) {
		r := rows[i]
		if r == nil {
			return "", time.Time{}, false
		}
		return r.Ticker, r.Date, true
	})
	if err != nil {
		return err
	}
	if err := checkExisting(ctx, s.conn, "fact_prices", byTicker); err != nil {
		return err
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO fact_prices (
			date, ticker, open, high, low, close, adj_close, volume,
			asset_class, currency, source
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			r.Date, r.Ticker, r.Open, r.High, r.Low, r.Close, r.AdjClose, r.Volume,
			string(r.AssetClass), r.Currency, r.Source,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTicker retrieves all rows for a ticker, ordered by date ASC.
func (s *PriceStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.PriceRow, error) {
	query := `
		SELECT date, ticker, open, high, low, close, adj_close, volume,
		       asset_class, currency, source
		FROM fact_prices
		WHERE ticker = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, ticker)
	if err != nil {
		return nil, fmt.Errorf("query prices by ticker: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetByDateRange retrieves rows for a ticker within [start, end] (inclusive).
func (s *PriceStore) GetByDateRange(ctx context.Context, ticker string, start, end time.Time) ([]*domain.PriceRow, error) {
	query := `
		SELECT date, ticker, open, high, low, close, adj_close, volume,
		       asset_class, currency, source
		FROM fact_prices
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("query prices by date range: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetLatestDate returns the most recent stored date for a ticker.
func (s *PriceStore) GetLatestDate(ctx context.Context, ticker string) (time.Time, error) {
	latest, ok, err := latestDate(ctx, s.conn, "fact_prices", ticker)
	if err != nil {
		return time.Time{}, fmt.Errorf("query latest price date: %w", err)
	}
	if !ok {
		return time.Time{}, storage.ErrNotFound
	}
	return latest, nil
}

func scanPrices(rows chRows) ([]*domain.PriceRow, error) {
	var result []*domain.PriceRow

	for rows.Next() {
		var r domain.PriceRow
		var assetClass string

		err := rows.Scan(
			&r.Date, &r.Ticker, &r.Open, &r.High, &r.Low, &r.Close, &r.AdjClose, &r.Volume,
			&assetClass, &r.Currency, &r.Source,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}

		r.Date = domain.TruncateDate(r.Date)
		r.AssetClass = domain.AssetClass(assetClass)
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price rows: %w", err)
	}

	return result, nil
}

// groupDates validates the batch keys and groups dates by ticker.
// Returns ErrInvalidInput for a nil or keyless row and ErrDuplicateKey for
// an intra-batch duplicate.
func groupDates(n int, key func(i int) (string, time.Time, bool)) (map[string][]time.Time, error) {
	seen := make(map[string]struct{}, n)
	byTicker := make(map[string][]time.Time)

	for i := 0; i < n; i++ {
		ticker, date, ok := key(i)
		if !ok || ticker == "" || date.IsZero() {
			return nil, storage.ErrInvalidInput
		}
		k := ticker + "|" + domain.FormatDate(date)
		if _, exists := seen[k]; exists {
			return nil, storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		byTicker[ticker] = append(byTicker[ticker], date)
	}
	return byTicker, nil
}

// checkExisting returns ErrDuplicateKey if any (ticker, date) is already stored.
func checkExisting(ctx context.Context, conn *Conn, table string, byTicker map[string][]time.Time) error {
	for ticker, dates := range byTicker {
		found, err := existingKeys(ctx, conn, table, ticker, dates)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if len(found) > 0 {
			return storage.ErrDuplicateKey
		}
	}
	return nil
}
