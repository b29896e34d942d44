package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"market-etl/internal/domain"
	"market-etl/internal/storage"
)

// FeatureStore is an in-memory implementation of storage.FeatureStore.
type FeatureStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FeatureRow // keyed by (ticker, date)
}

// NewFeatureStore creates a new in-memory feature store.
func NewFeatureStore() *FeatureStore {
	return &FeatureStore{
		data: make(map[string]*domain.FeatureRow),
	}
}

// InsertBulk adds multiple rows. Fails entire batch on duplicate.
func (s *FeatureStore) InsertBulk(_ context.Context, rows []*domain.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))
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

	for _, r := range rows {
		s.data[factKey(r.Ticker, r.Date)] = copyFeatureRow(r)
	}

	return nil
}

// GetByTicker retrieves all rows for a ticker, ordered by date ASC.
func (s *FeatureStore) GetByTicker(_ context.Context, ticker string) ([]*domain.FeatureRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FeatureRow
	for _, r := range s.data {
		if r.Ticker == ticker {
			result = append(result, copyFeatureRow(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

// GetLatestDate returns the most recent stored date for a ticker.
func (s *FeatureStore) GetLatestDate(_ context.Context, ticker string) (time.Time, error) {
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

// copyFeatureRow deep-copies the nullable fields.
func copyFeatureRow(r *domain.FeatureRow) *domain.FeatureRow {
	c := *r
	for _, p := range []**float64{
		&c.Ret1D, &c.LogRet1D, &c.MA20, &c.MA50, &c.MA200, &c.Vol20, &c.Vol60,
		&c.BBMid20, &c.BBUp20, &c.BBLow20, &c.ATR14,
	} {
		if *p != nil {
			v := **p
			*p = &v
		}
	}
	return &c
}

var _ storage.FeatureStore = (*FeatureStore)(nil)
