package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"market-etl/internal/domain"
	"market-etl/internal/storage"
)

// CalendarStore implements storage.CalendarStore using PostgreSQL.
type CalendarStore struct {
	pool *Pool
}

// NewCalendarStore creates a new CalendarStore.
func NewCalendarStore(pool *Pool) *CalendarStore {
	return &CalendarStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CalendarStore = (*CalendarStore)(nil)

var calendarColumns = []string{
	"date", "year", "quarter", "month", "week", "day", "day_of_week",
	"is_month_end", "is_quarter_end", "is_year_end",
}

// ReplaceAll swaps dim_date for rows. The calendar is bulk-copied.
func (s *CalendarStore) ReplaceAll(ctx context.Context, rows []*domain.CalendarRow) error {
	for _, r := range rows {
		if r == nil || r.Date.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	return s.pool.replaceAll(ctx, "dim_date", func(tx pgx.Tx) error {
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"dim_date"}, calendarColumns,
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				r := rows[i]
				return []any{
					r.Date, r.Year, r.Quarter, r.Month, r.Week, r.Day, r.DayOfWeek,
					r.IsMonthEnd, r.IsQuarterEnd, r.IsYearEnd,
				}, nil
			}),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("copy dim_date: %w", err)
		}
		return nil
	})
}

// GetAll retrieves all rows ordered by date ASC.
func (s *CalendarStore) GetAll(ctx context.Context) ([]*domain.CalendarRow, error) {
	query := `
		SELECT date, year, quarter, month, week, day, day_of_week,
		       is_month_end, is_quarter_end, is_year_end
		FROM dim_date
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get dim_date: %w", err)
	}
	defer rows.Close()

	var result []*domain.CalendarRow
	for rows.Next() {
		var r domain.CalendarRow
		err := rows.Scan(
			&r.Date, &r.Year, &r.Quarter, &r.Month, &r.Week, &r.Day, &r.DayOfWeek,
			&r.IsMonthEnd, &r.IsQuarterEnd, &r.IsYearEnd,
		)
		if err != nil {
			return nil, fmt.Errorf("scan dim_date row: %w", err)
		}
		r.Date = domain.TruncateDate(r.Date)
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dim_date rows: %w", err)
	}

	return result, nil
}
