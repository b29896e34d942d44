package storage

import (
	"context"
	"time"

	"market-etl/internal/domain"
)

// CalendarStore provides access to dim_date storage.
type CalendarStore interface {
	// ReplaceAll swaps the table contents for rows atomically.
	ReplaceAll(ctx context.Context, rows []*domain.CalendarRow) error

	// GetAll retrieves all rows ordered by date ASC.
	GetAll(ctx context.Context) ([]*domain.CalendarRow, error)
}

// TickerStore provides access to dim_ticker storage.
type TickerStore interface {
	// ReplaceAll swaps the table contents for rows atomically.
	// Returns ErrDuplicateKey if rows repeat a ticker.
	ReplaceAll(ctx context.Context, rows []*domain.TickerRow) error

	// GetAll retrieves all rows ordered by (asset_class, group, ticker).
	GetAll(ctx context.Context) ([]*domain.TickerRow, error)
}

// SnapshotStore provides access to fact_latest_snapshot storage.
type SnapshotStore interface {
	// ReplaceAll swaps the table contents for rows atomically.
	// Returns ErrDuplicateKey if rows repeat a ticker.
	ReplaceAll(ctx context.Context, rows []*domain.SnapshotRow) error

	// GetAll retrieves all rows ordered by ticker ASC.
	GetAll(ctx context.Context) ([]*domain.SnapshotRow, error)

	// GetByTicker retrieves one ticker's snapshot. Returns ErrNotFound if not exists.
	GetByTicker(ctx context.Context, ticker string) (*domain.SnapshotRow, error)
}

// PriceStore provides access to fact_prices storage.
type PriceStore interface {
	// InsertBulk adds multiple rows. Fails entire batch on duplicate (date, ticker).
	InsertBulk(ctx context.Context, rows []*domain.PriceRow) error

	// GetByTicker retrieves all rows for a ticker, ordered by date ASC.
	GetByTicker(ctx context.Context, ticker string) ([]*domain.PriceRow, error)

	// GetByDateRange retrieves rows for a ticker within [start, end] (inclusive).
	GetByDateRange(ctx context.Context, ticker string, start, end time.Time) ([]*domain.PriceRow, error)

	// GetLatestDate returns the most recent stored date for a ticker.
	// Returns ErrNotFound if the ticker has no rows.
	GetLatestDate(ctx context.Context, ticker string) (time.Time, error)
}

// FeatureStore provides access to fact_features_daily storage.
type FeatureStore interface {
	// InsertBulk adds multiple rows. Fails entire batch on duplicate (date, ticker).
	InsertBulk(ctx context.Context, rows []*domain.FeatureRow) error

	// GetByTicker retrieves all rows for a ticker, ordered by date ASC.
	GetByTicker(ctx context.Context, ticker string) ([]*domain.FeatureRow, error)

	// GetLatestDate returns the most recent stored date for a ticker.
	// Returns ErrNotFound if the ticker has no rows.
	GetLatestDate(ctx context.Context, ticker string) (time.Time, error)
}

// RunMetadataStore provides access to etl_metadata storage.
type RunMetadataStore interface {
	// Insert appends a run record. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, md *domain.RunMetadata) error

	// GetByID retrieves a run by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunMetadata, error)

	// GetAll retrieves all runs ordered by run_timestamp_utc ASC.
	GetAll(ctx context.Context) ([]*domain.RunMetadata, error)
}
