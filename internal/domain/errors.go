package domain

import (
	"errors"
	"fmt"
)

// Per-ticker failure stages.
const (
	StageExtraction    = "extraction"
	StageNormalization = "normalization"
	StageComputation   = "computation"
)

// ExtractionError is returned when the extraction collaborator could not
// supply a series for a ticker.
type ExtractionError struct {
	Ticker string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Ticker, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// NormalizationError is returned when a raw record of a ticker is malformed
// or incomplete.
type NormalizationError struct {
	Ticker string
	Date   string // offending record date, empty if unknown
	Reason string
}

func (e *NormalizationError) Error() string {
	if e.Date == "" {
		return fmt.Sprintf("normalize %s: %s", e.Ticker, e.Reason)
	}
	return fmt.Sprintf("normalize %s at %s: %s", e.Ticker, e.Date, e.Reason)
}

// ComputationError signals a violated feature engine precondition
// (unsorted, mixed-ticker or non-positive input).
type ComputationError struct {
	Ticker string
	Reason string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("compute features %s: %s", e.Ticker, e.Reason)
}

// FailureStage classifies a per-ticker error into one of the Stage* values.
// Unknown errors are attributed to extraction, the only stage that talks
// to the outside world.
func FailureStage(err error) string {
	var normErr *NormalizationError
	if errors.As(err, &normErr) {
		return StageNormalization
	}
	var compErr *ComputationError
	if errors.As(err, &compErr) {
		return StageComputation
	}
	return StageExtraction
}
