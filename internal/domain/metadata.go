package domain

import "time"

// RunMetadata represents the single etl_metadata row of one invocation.
type RunMetadata struct {
	RunID            string    // derived from RunTimestampUTC
	RunTimestampUTC  time.Time // run start
	RowsWritten      int       // surviving fact_prices rows
	TickersSucceeded []string  // sorted
	TickersFailed    []string  // sorted
	APICalls         int
	Notes            string
}
