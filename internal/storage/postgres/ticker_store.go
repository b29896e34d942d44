package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"market-etl/internal/domain"
	"market-etl/internal/storage"
)

// TickerStore implements storage.TickerStore using PostgreSQL.
type TickerStore struct {
	pool *Pool
}

// NewTickerStore creates a new TickerStore.
func NewTickerStore(pool *Pool) *TickerStore {
	return &TickerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TickerStore = (*TickerStore)(nil)

// ReplaceAll swaps dim_ticker for rows.
func (s *TickerStore) ReplaceAll(ctx context.Context, rows []*domain.TickerRow) error {
	for _, r := range rows {
		if r == nil || r.Ticker == "" {
			return storage.ErrInvalidInput
		}
	}

	query := `
		INSERT INTO dim_ticker (ticker, name, asset_class, "group", currency, source)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	return s.pool.replaceAll(ctx, "dim_ticker", func(tx pgx.Tx) error {
		for _, r := range rows {
			_, err := tx.Exec(ctx, query,
				r.Ticker, r.Name, string(r.AssetClass), r.Group, r.Currency, r.Source,
			)
			if err != nil {
				if isDuplicateKeyError(err) {
					return storage.ErrDuplicateKey
				}
				return fmt.Errorf("insert dim_ticker row: %w", err)
			}
		}
		return nil
	})
}

// GetAll retrieves all rows ordered by (asset_class, group, ticker).
func (s *TickerStore) GetAll(ctx context.Context) ([]*domain.TickerRow, error) {
	query := `
		SELECT ticker, name, asset_class, "group", currency, source
		FROM dim_ticker
		ORDER BY asset_class ASC, "group" ASC, ticker ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get dim_ticker: %w", err)
	}
	defer rows.Close()

	var result []*domain.TickerRow
	for rows.Next() {
		var r domain.TickerRow
		var assetClass string
		if err := rows.Scan(&r.Ticker, &r.Name, &assetClass, &r.Group, &r.Currency, &r.Source); err != nil {
			return nil, fmt.Errorf("scan dim_ticker row: %w", err)
		}
		r.AssetClass = domain.AssetClass(assetClass)
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dim_ticker rows: %w", err)
	}

	return result, nil
}
