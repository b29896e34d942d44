package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"market-etl/internal/domain"
	"market-etl/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PriceRow // keyed by (ticker, date)
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		data: make(map[string]*domain.PriceRow),
	}
}

// factKey generates the (ticker, date) key of a fact row.
func factKey(ticker string, date time.Time) string {
	return ticker + "|" + domain.FormatDate(date)
}

// InsertBulk adds multiple rows. Fails entire batch on duplicate.
func (s *PriceStore) InsertBulk(_ context.Context, rows []*domain.PriceRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range rows {
		if r == nil || r.Ticker == "" || r.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := factKey(r.Ticker, r.Date)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range rows {
		rowCopy := *r
		if r.Volume != nil {
			v := *r.Volume
			rowCopy.Volume = &v
		}
		s.data[factKey(r.Ticker, r.Date)] = &rowCopy
	}

	return nil
}

// GetByTicker retrieves all rows for a ticker, ordered by date ASC.
func (s *PriceStore) GetByTicker(_ context.Context, ticker string) ([]*domain.PriceRow, error) {
	return s.filter(ticker, func(*domain.PriceRow) bool { return true }), nil
}

// GetByDateRange retrieves rows for a ticker within [start, end] (inclusive).
func (s *PriceStore) GetByDateRange(_ context.Context, ticker string, start, end time.Time) ([]*domain.PriceRow, error) {
	return s.filter(ticker, func(r *domain.PriceRow) bool {
		return !r.Date.Before(start) && !r.Date.After(end)
	}), nil
}

// GetLatestDate returns the most recent stored date for a ticker.
func (s *PriceStore) GetLatestDate(_ context.Context, ticker string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	found := false
	for _, r := range s.data {
		if r.Ticker == ticker && (!found || r.Date.After(latest)) {
			latest = r.Date
			found = true
		}
	}
	if !found {
		return time.Time{}, storage.ErrNotFound
	}
	return latest, nil
}

func (s *PriceStore) filter(ticker string, keep func(*domain.PriceRow) bool) []*domain.PriceRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceRow
	for _, r := range s.data {
		if r.Ticker == ticker && keep(r) {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result
}

var _ storage.PriceStore = (*PriceStore)(nil)
