package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"market-etl/internal/domain"
	"market-etl/internal/storage"
)

func TestRunMetadataStore_InsertAndGet(t *testing.T) {
	store := NewRunMetadataStore()
	ctx := context.Background()

	md := &domain.RunMetadata{
		RunID:            "20240105T120000Z",
		RunTimestampUTC:  time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC),
		RowsWritten:      42,
		TickersSucceeded: []string{"AAPL"},
		TickersFailed:    []string{"MSFT"},
		APICalls:         3,
		Notes:            "MSFT failed in extraction: boom",
	}
	if err := store.Insert(ctx, md); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	md.TickersSucceeded[0] = "XXX"

	got, err := store.GetByID(ctx, md.RunID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.RowsWritten != 42 || got.APICalls != 3 {
		t.Errorf("Unexpected counters: %+v", got)
	}
	if got.TickersSucceeded[0] != "AAPL" {
		t.Errorf("Expected stored copy of succeeded list, got %v", got.TickersSucceeded)
	}
}

func TestRunMetadataStore_DuplicateRunID(t *testing.T) {
	store := NewRunMetadataStore()
	ctx := context.Background()

	md := &domain.RunMetadata{RunID: "20240105T120000Z"}
	if err := store.Insert(ctx, md); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, md); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestRunMetadataStore_GetByIDNotFound(t *testing.T) {
	store := NewRunMetadataStore()

	if _, err := store.GetByID(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRunMetadataStore_GetAllOrdered(t *testing.T) {
	store := NewRunMetadataStore()
	ctx := context.Background()

	later := &domain.RunMetadata{RunID: "b", RunTimestampUTC: time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)}
	earlier := &domain.RunMetadata{RunID: "a", RunTimestampUTC: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)}
	_ = store.Insert(ctx, later)
	_ = store.Insert(ctx, earlier)

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 2 || all[0].RunID != "a" {
		t.Errorf("Expected runs ordered by timestamp")
	}
}
