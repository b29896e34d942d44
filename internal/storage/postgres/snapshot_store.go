package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"market-etl/internal/domain"
	"market-etl/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

const snapshotSelect = `
	SELECT ticker, last_date, last_close, pct_1d, pct_1w, pct_1m, pct_ytd, vol_60, max_dd_1y
	FROM fact_latest_snapshot
`

// ReplaceAll swaps fact_latest_snapshot for rows.
func (s *SnapshotStore) ReplaceAll(ctx context.Context, rows []*domain.SnapshotRow) error {
	for _, r := range rows {
		if r == nil || r.Ticker == "" {
			return storage.ErrInvalidInput
		}
	}

	query := `
		INSERT INTO fact_latest_snapshot (
			ticker, last_date, last_close, pct_1d, pct_1w, pct_1m, pct_ytd, vol_60, max_dd_1y
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	return s.pool.replaceAll(ctx, "fact_latest_snapshot", func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range rows {
			batch.Queue(query,
				r.Ticker, r.LastDate, r.LastClose,
				r.Pct1D, r.Pct1W, r.Pct1M, r.PctYTD, r.Vol60, r.MaxDD1Y,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for range rows {
			if _, err := results.Exec(); err != nil {
				results.Close()
				if isDuplicateKeyError(err) {
					return storage.ErrDuplicateKey
				}
				return fmt.Errorf("insert snapshot row: %w", err)
			}
		}
		return results.Close()
	})
}

// GetAll retrieves all rows ordered by ticker ASC.
func (s *SnapshotStore) GetAll(ctx context.Context) ([]*domain.SnapshotRow, error) {
	rows, err := s.pool.Query(ctx, snapshotSelect+" ORDER BY ticker ASC")
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	defer rows.Close()

	var result []*domain.SnapshotRow
	for rows.Next() {
		r, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return result, nil
}

// GetByTicker retrieves one ticker's snapshot. Returns ErrNotFound if not exists.
func (s *SnapshotStore) GetByTicker(ctx context.Context, ticker string) (*domain.SnapshotRow, error) {
	row := s.pool.QueryRow(ctx, snapshotSelect+" WHERE ticker = $1", ticker)
	r, err := scanSnapshot(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot by ticker: %w", err)
	}
	return r, nil
}

func scanSnapshot(row pgx.Row) (*domain.SnapshotRow, error) {
	var r domain.SnapshotRow

	err := row.Scan(
		&r.Ticker, &r.LastDate, &r.LastClose,
		&r.Pct1D, &r.Pct1W, &r.Pct1M, &r.PctYTD, &r.Vol60, &r.MaxDD1Y,
	)
	if err != nil {
		return nil, err
	}

	r.LastDate = domain.TruncateDate(r.LastDate)
	return &r, nil
}
