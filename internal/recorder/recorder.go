// Package recorder aggregates per-ticker outcomes of one pipeline
// invocation into its etl_metadata record.
package recorder

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"market-etl/internal/domain"
)

// RunIDLayout formats the run start time into the run identifier.
const RunIDLayout = "20060102T150405Z"

// RunID derives the run identifier from the run start time.
func RunID(startedAt time.Time) string {
	return startedAt.UTC().Format(RunIDLayout)
}

// Failure describes why a ticker was excluded from the run.
type Failure struct {
	Ticker string
	Stage  string
	Err    error
}

// Recorder is safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	startedAt time.Time
	rows      int
	succeeded map[string]int
	failed    map[string]Failure
	apiCalls  int
	notes     []string
}

// New creates a recorder for a run started at startedAt.
func New(startedAt time.Time) *Recorder {
	return &Recorder{
		startedAt: startedAt.UTC(),
		succeeded: make(map[string]int),
		failed:    make(map[string]Failure),
	}
}

// RunID returns the identifier of the recorded run.
func (r *Recorder) RunID() string {
	return RunID(r.startedAt)
}

// StartedAt returns the run start time in UTC.
func (r *Recorder) StartedAt() time.Time {
	return r.startedAt
}

// Succeeded records a ticker that contributed rows price rows.
// A ticker recorded as failed stays failed.
func (r *Recorder) Succeeded(ticker string, rows int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, failed := r.failed[ticker]; failed {
		return
	}
	r.rows += rows - r.succeeded[ticker]
	r.succeeded[ticker] = rows
}

// Failed records a failed ticker. Rows previously attributed to it are
// withdrawn.
func (r *Recorder) Failed(ticker string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rows, ok := r.succeeded[ticker]; ok {
		r.rows -= rows
		delete(r.succeeded, ticker)
	}
	r.failed[ticker] = Failure{Ticker: ticker, Stage: domain.FailureStage(err), Err: err}
}

// SetAPICalls stores the upstream call count reported by the source.
func (r *Recorder) SetAPICalls(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apiCalls = n
}

// AddNote appends a free-text note.
func (r *Recorder) AddNote(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, fmt.Sprintf(format, args...))
}

// RowsWritten returns the current price row total.
func (r *Recorder) RowsWritten() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

// Failures returns failed tickers sorted by symbol.
func (r *Recorder) Failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Failure, 0, len(r.failed))
	for _, f := range r.failed {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Finalize produces the run's metadata record. Ticker lists are sorted.
// Notes keep insertion order, followed by one entry per failure.
func (r *Recorder) Finalize() *domain.RunMetadata {
	failures := r.Failures()

	r.mu.Lock()
	defer r.mu.Unlock()

	succeeded := make([]string, 0, len(r.succeeded))
	for t := range r.succeeded {
		succeeded = append(succeeded, t)
	}
	sort.Strings(succeeded)

	failed := make([]string, 0, len(failures))
	notes := append([]string(nil), r.notes...)
	for _, f := range failures {
		failed = append(failed, f.Ticker)
		notes = append(notes, fmt.Sprintf("%s failed in %s: %v", f.Ticker, f.Stage, f.Err))
	}

	return &domain.RunMetadata{
		RunID:            RunID(r.startedAt),
		RunTimestampUTC:  r.startedAt,
		RowsWritten:      r.rows,
		TickersSucceeded: succeeded,
		TickersFailed:    failed,
		APICalls:         r.apiCalls,
		Notes:            strings.Join(notes, "; "),
	}
}
