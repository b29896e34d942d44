package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"market-etl/internal/domain"
	"market-etl/internal/storage"
)

// RunMetadataStore implements storage.RunMetadataStore using PostgreSQL.
type RunMetadataStore struct {
	pool *Pool
}

// NewRunMetadataStore creates a new RunMetadataStore.
func NewRunMetadataStore(pool *Pool) *RunMetadataStore {
	return &RunMetadataStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunMetadataStore = (*RunMetadataStore)(nil)

const runMetadataSelect = `
	SELECT run_id, run_timestamp_utc, rows_written, tickers_succeeded, tickers_failed, api_calls, notes
	FROM etl_metadata
`

// Insert appends a run record. Returns ErrDuplicateKey if run_id exists.
func (s *RunMetadataStore) Insert(ctx context.Context, md *domain.RunMetadata) error {
	if md == nil || md.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO etl_metadata (
			run_id, run_timestamp_utc, rows_written, tickers_succeeded, tickers_failed, api_calls, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		md.RunID,
		md.RunTimestampUTC,
		md.RowsWritten,
		nonNil(md.TickersSucceeded),
		nonNil(md.TickersFailed),
		md.APICalls,
		md.Notes,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert etl_metadata: %w", err)
	}
	return nil
}

// GetByID retrieves a run by id. Returns ErrNotFound if not exists.
func (s *RunMetadataStore) GetByID(ctx context.Context, runID string) (*domain.RunMetadata, error) {
	row := s.pool.QueryRow(ctx, runMetadataSelect+" WHERE run_id = $1", runID)
	md, err := scanRunMetadata(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get etl_metadata by id: %w", err)
	}
	return md, nil
}

// GetAll retrieves all runs ordered by run_timestamp_utc ASC.
func (s *RunMetadataStore) GetAll(ctx context.Context) ([]*domain.RunMetadata, error) {
	rows, err := s.pool.Query(ctx, runMetadataSelect+" ORDER BY run_timestamp_utc ASC, run_id ASC")
	if err != nil {
		return nil, fmt.Errorf("get etl_metadata: %w", err)
	}
	defer rows.Close()

	var result []*domain.RunMetadata
	for rows.Next() {
		md, err := scanRunMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("scan etl_metadata row: %w", err)
		}
		result = append(result, md)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate etl_metadata rows: %w", err)
	}

	return result, nil
}

func scanRunMetadata(row pgx.Row) (*domain.RunMetadata, error) {
	var md domain.RunMetadata

	err := row.Scan(
		&md.RunID,
		&md.RunTimestampUTC,
		&md.RowsWritten,
		&md.TickersSucceeded,
		&md.TickersFailed,
		&md.APICalls,
		&md.Notes,
	)
	if err != nil {
		return nil, err
	}

	md.RunTimestampUTC = md.RunTimestampUTC.UTC()
	return &md, nil
}

// nonNil maps a nil list to an empty one so the NOT NULL array column accepts it.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
