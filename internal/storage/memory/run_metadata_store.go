package memory

import (
	"context"
	"sort"
	"sync"

	"market-etl/internal/domain"
	"market-etl/internal/storage"
)

// RunMetadataStore is an in-memory implementation of storage.RunMetadataStore.
type RunMetadataStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunMetadata // keyed by run_id
}

// NewRunMetadataStore creates a new in-memory run log.
func NewRunMetadataStore() *RunMetadataStore {
	return &RunMetadataStore{
		data: make(map[string]*domain.RunMetadata),
	}
}

// Insert appends a run record. Returns ErrDuplicateKey if run_id exists.
func (s *RunMetadataStore) Insert(_ context.Context, md *domain.RunMetadata) error {
	if md == nil || md.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[md.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[md.RunID] = copyRunMetadata(md)
	return nil
}

// GetByID retrieves a run by id. Returns ErrNotFound if not exists.
func (s *RunMetadataStore) GetByID(_ context.Context, runID string) (*domain.RunMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	md, ok := s.data[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyRunMetadata(md), nil
}

// GetAll retrieves all runs ordered by run_timestamp_utc ASC.
func (s *RunMetadataStore) GetAll(_ context.Context) ([]*domain.RunMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RunMetadata, 0, len(s.data))
	for _, md := range s.data {
		result = append(result, copyRunMetadata(md))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].RunTimestampUTC.Equal(result[j].RunTimestampUTC) {
			return result[i].RunTimestampUTC.Before(result[j].RunTimestampUTC)
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}

func copyRunMetadata(md *domain.RunMetadata) *domain.RunMetadata {
	c := *md
	c.TickersSucceeded = append([]string(nil), md.TickersSucceeded...)
	c.TickersFailed = append([]string(nil), md.TickersFailed...)
	return &c
}

var _ storage.RunMetadataStore = (*RunMetadataStore)(nil)
