package recorder

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"market-etl/internal/domain"
)

var started = time.Date(2024, 6, 3, 14, 5, 9, 0, time.UTC)

func TestRunID(t *testing.T) {
	if got := RunID(started); got != "20240603T140509Z" {
		t.Errorf("expected 20240603T140509Z, got %s", got)
	}

	local := started.In(time.FixedZone("X", 2*3600))
	if got := RunID(local); got != "20240603T140509Z" {
		t.Errorf("expected UTC-based id, got %s", got)
	}
}

func TestFinalize(t *testing.T) {
	r := New(started)
	r.Succeeded("MSFT", 10)
	r.Succeeded("AAPL", 5)
	r.Failed("EURUSD", &domain.ExtractionError{Ticker: "EURUSD", Err: errors.New("rate limited")})
	r.SetAPICalls(3)

	md := r.Finalize()

	if md.RunID != "20240603T140509Z" {
		t.Errorf("unexpected run id %s", md.RunID)
	}
	if !md.RunTimestampUTC.Equal(started) {
		t.Errorf("unexpected timestamp %v", md.RunTimestampUTC)
	}
	if md.RowsWritten != 15 {
		t.Errorf("expected 15 rows, got %d", md.RowsWritten)
	}
	if strings.Join(md.TickersSucceeded, ",") != "AAPL,MSFT" {
		t.Errorf("unexpected succeeded %v", md.TickersSucceeded)
	}
	if strings.Join(md.TickersFailed, ",") != "EURUSD" {
		t.Errorf("unexpected failed %v", md.TickersFailed)
	}
	if md.APICalls != 3 {
		t.Errorf("expected 3 api calls, got %d", md.APICalls)
	}
	if !strings.Contains(md.Notes, "EURUSD failed in extraction") {
		t.Errorf("expected failure note, got %q", md.Notes)
	}
}

func TestFailedWithdrawsRows(t *testing.T) {
	r := New(started)
	r.Succeeded("BTC", 7)
	r.Failed("BTC", &domain.ComputationError{Ticker: "BTC", Reason: "unsorted"})
	r.Succeeded("BTC", 7)

	md := r.Finalize()
	if md.RowsWritten != 0 {
		t.Errorf("expected 0 rows, got %d", md.RowsWritten)
	}
	if len(md.TickersSucceeded) != 0 {
		t.Errorf("expected no successes, got %v", md.TickersSucceeded)
	}

	failures := r.Failures()
	if len(failures) != 1 || failures[0].Stage != domain.StageComputation {
		t.Errorf("unexpected failures %+v", failures)
	}
}

func TestNotesKeepOrder(t *testing.T) {
	r := New(started)
	r.AddNote("dedup policy %s", "last_ingested")
	r.AddNote("source stub")

	if got := r.Finalize().Notes; got != "dedup policy last_ingested; source stub" {
		t.Errorf("unexpected notes %q", got)
	}
}

func TestConcurrentUpdates(t *testing.T) {
	r := New(started)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ticker := fmt.Sprintf("T%02d", i)
			if i%5 == 0 {
				r.Failed(ticker, &domain.NormalizationError{Ticker: ticker, Reason: "missing close"})
				return
			}
			r.Succeeded(ticker, 2)
		}(i)
	}
	wg.Wait()

	md := r.Finalize()
	if md.RowsWritten != 80 {
		t.Errorf("expected 80 rows, got %d", md.RowsWritten)
	}
	if len(md.TickersSucceeded) != 40 || len(md.TickersFailed) != 10 {
		t.Errorf("unexpected partition %d/%d", len(md.TickersSucceeded), len(md.TickersFailed))
	}
}
