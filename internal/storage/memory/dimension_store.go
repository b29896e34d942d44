package memory

import (
	"context"
	"sort"
	"sync"

	"market-etl/internal/domain"
	"market-etl/internal/storage"
)

// CalendarStore is an in-memory implementation of storage.CalendarStore.
type CalendarStore struct {
	mu   sync.RWMutex
	rows []domain.CalendarRow
}

// NewCalendarStore creates a new in-memory calendar store.
func NewCalendarStore() *CalendarStore {
	return &CalendarStore{}
}

// ReplaceAll swaps the stored calendar for rows.
func (s *CalendarStore) ReplaceAll(_ context.Context, rows []*domain.CalendarRow) error {
	next := make([]domain.CalendarRow, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := domain.FormatDate(r.Date)
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
		next = append(next, *r)
	}
	sort.Slice(next, func(i, j int) bool {
		return next[i].Date.Before(next[j].Date)
	})

	s.mu.Lock()
	s.rows = next
	s.mu.Unlock()
	return nil
}

// GetAll retrieves all rows ordered by date ASC.
func (s *CalendarStore) GetAll(_ context.Context) ([]*domain.CalendarRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.CalendarRow, len(s.rows))
	for i := range s.rows {
		rowCopy := s.rows[i]
		result[i] = &rowCopy
	}
	return result, nil
}

var _ storage.CalendarStore = (*CalendarStore)(nil)

// TickerStore is an in-memory implementation of storage.TickerStore.
type TickerStore struct {
	mu   sync.RWMutex
	rows []domain.TickerRow
}

// NewTickerStore creates a new in-memory ticker store.
func NewTickerStore() *TickerStore {
	return &TickerStore{}
}

// ReplaceAll swaps the stored dimension for rows.
func (s *TickerStore) ReplaceAll(_ context.Context, rows []*domain.TickerRow) error {
	next := make([]domain.TickerRow, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.Ticker == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[r.Ticker]; exists {
			return storage.ErrDuplicateKey
		}
		seen[r.Ticker] = struct{}{}
		next = append(next, *r)
	}
	sort.Slice(next, func(i, j int) bool {
		a, b := next[i], next[j]
		if a.AssetClass != b.AssetClass {
			return a.AssetClass < b.AssetClass
		}
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Ticker < b.Ticker
	})

	s.mu.Lock()
	s.rows = next
	s.mu.Unlock()
	return nil
}

// GetAll retrieves all rows ordered by (asset_class, group, ticker).
func (s *TickerStore) GetAll(_ context.Context) ([]*domain.TickerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TickerRow, len(s.rows))
	for i := range s.rows {
		rowCopy := s.rows[i]
		result[i] = &rowCopy
	}
	return result, nil
}

var _ storage.TickerStore = (*TickerStore)(nil)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SnapshotRow // keyed by ticker
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string]*domain.SnapshotRow),
	}
}

// ReplaceAll swaps the stored snapshot for rows.
func (s *SnapshotStore) ReplaceAll(_ context.Context, rows []*domain.SnapshotRow) error {
	next := make(map[string]*domain.SnapshotRow, len(rows))
	for _, r := range rows {
		if r == nil || r.Ticker == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := next[r.Ticker]; exists {
			return storage.ErrDuplicateKey
		}
		next[r.Ticker] = copySnapshotRow(r)
	}

	s.mu.Lock()
	s.data = next
	s.mu.Unlock()
	return nil
}

// GetAll retrieves all rows ordered by ticker ASC.
func (s *SnapshotStore) GetAll(_ context.Context) ([]*domain.SnapshotRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.SnapshotRow, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, copySnapshotRow(r))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Ticker < result[j].Ticker
	})
	return result, nil
}

// GetByTicker retrieves one ticker's snapshot.
func (s *SnapshotStore) GetByTicker(_ context.Context, ticker string) (*domain.SnapshotRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[ticker]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copySnapshotRow(r), nil
}

func copySnapshotRow(r *domain.SnapshotRow) *domain.SnapshotRow {
	c := *r
	for _, p := range []**float64{&c.Pct1D, &c.Pct1W, &c.Pct1M, &c.PctYTD, &c.Vol60, &c.MaxDD1Y} {
		if *p != nil {
			v := **p
			*p = &v
		}
	}
	return &c
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
