package clickhouse

import (
	"context"
	"fmt"
	"time"

	"market-etl/internal/domain"
	"market-etl/internal/storage"
)

// FeatureStore implements storage.FeatureStore using ClickHouse.
type FeatureStore struct {
	conn *Conn
}

// NewFeatureStore creates a new FeatureStore.
func NewFeatureStore(conn *Conn) *FeatureStore {
	return &FeatureStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

// InsertBulk adds multiple rows. Fails entire batch on duplicate (date, ticker).
func (s *FeatureStore) InsertBulk(ctx context.Context, rows []*domain.FeatureRow) error {
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
	if err := checkExisting(ctx, s.conn, "fact_features_daily", byTicker); err != nil {
		return err
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO fact_features_daily (
			date, ticker, ret_1d, log_ret_1d, ma_20, ma_50, ma_200, vol_20, vol_60,
			peak_to_date, drawdown_pct, bb_mid_20, bb_up_20, bb_low_20,
			true_range, atr_14, trend_regime, vol_regime
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			r.Date, r.Ticker, r.Ret1D, r.LogRet1D, r.MA20, r.MA50, r.MA200, r.Vol20, r.Vol60,
			r.PeakToDate, r.DrawdownPct, r.BBMid20, r.BBUp20, r.BBLow20,
			r.TrueRange, r.ATR14, string(r.TrendRegime), string(r.VolRegime),
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
func (s *FeatureStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.FeatureRow, error) {
	query := `
		SELECT date, ticker, ret_1d, log_ret_1d, ma_20, ma_50, ma_200, vol_20, vol_60,
		       peak_to_date, drawdown_pct, bb_mid_20, bb_up_20, bb_low_20,
		       true_range, atr_14, trend_regime, vol_regime
		FROM fact_features_daily
		WHERE ticker = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, ticker)
	if err != nil {
		return nil, fmt.Errorf("query features by ticker: %w", err)
	}
	defer rows.Close()

	return scanFeatures(rows)
}

// GetLatestDate returns the most recent stored date for a ticker.
func (s *FeatureStore) GetLatestDate(ctx context.Context, ticker string) (time.Time, error) {
	latest, ok, err := latestDate(ctx, s.conn, "fact_features_daily", ticker)
	if err != nil {
		return time.Time{}, fmt.Errorf("query latest feature date: %w", err)
	}
	if !ok {
		return time.Time{}, storage.ErrNotFound
	}
	return latest, nil
}

func scanFeatures(rows chRows) ([]*domain.FeatureRow, error) {
	var result []*domain.FeatureRow

	for rows.Next() {
		var r domain.FeatureRow
		var trend, vol string

		err := rows.Scan(
			&r.Date, &r.Ticker, &r.Ret1D, &r.LogRet1D, &r.MA20, &r.MA50, &r.MA200, &r.Vol20, &r.Vol60,
			&r.PeakToDate, &r.DrawdownPct, &r.BBMid20, &r.BBUp20, &r.BBLow20,
			&r.TrueRange, &r.ATR14, &trend, &vol,
		)
		if err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}

		r.Date = domain.TruncateDate(r.Date)
		r.TrendRegime = domain.Regime(trend)
		r.VolRegime = domain.Regime(vol)
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature rows: %w", err)
	}

	return result, nil
}
