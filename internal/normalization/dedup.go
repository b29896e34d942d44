package normalization

import (
	"fmt"
	"strings"

	"market-etl/internal/domain"
)

// DedupPolicy selects the surviving record when several raw records share
// (ticker, date).
type DedupPolicy string

const (
	// DedupLastIngested keeps the record supplied last.
	DedupLastIngested DedupPolicy = "last_ingested"
	// DedupFirstIngested keeps the record supplied first.
	DedupFirstIngested DedupPolicy = "first_ingested"
	// DedupLastSource keeps the record with the lexicographically greatest
	// source; ties fall back to DedupLastIngested.
	DedupLastSource DedupPolicy = "last_source"
)

// DefaultDedupPolicy is used when no policy is configured.
const DefaultDedupPolicy = DedupLastIngested

// ParseDedupPolicy parses a configured policy name. Empty selects the default.
func ParseDedupPolicy(s string) (DedupPolicy, error) {
	p := DedupPolicy(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return DefaultDedupPolicy, nil
	case DedupLastIngested, DedupFirstIngested, DedupLastSource:
		return p, nil
	default:
		return "", fmt.Errorf("unknown dedup policy %q", s)
	}
}

// ingestedRow is a candidate row tagged with its position in the raw input.
type ingestedRow struct {
	row *domain.PriceRow
	seq int
}

// prefers reports whether candidate replaces incumbent under the policy.
// candidate.seq is always greater than incumbent.seq.
func (p DedupPolicy) prefers(candidate, incumbent ingestedRow) bool {
	switch p {
	case DedupFirstIngested:
		return false
	case DedupLastSource:
		if candidate.row.Source != incumbent.row.Source {
			return candidate.row.Source > incumbent.row.Source
		}
		return true
	default:
		return true
	}
}

// deduplicate keeps exactly one row per date. Rows must be in ingestion
// order and belong to one ticker.
func deduplicate(rows []*domain.PriceRow, policy DedupPolicy) []*domain.PriceRow {
	survivors := make(map[string]ingestedRow, len(rows))
	for seq, r := range rows {
		key := domain.FormatDate(r.Date)
		candidate := ingestedRow{row: r, seq: seq}
		incumbent, exists := survivors[key]
		if !exists || policy.prefers(candidate, incumbent) {
			survivors[key] = candidate
		}
	}

	result := make([]*domain.PriceRow, 0, len(survivors))
	for _, s := range survivors {
		result = append(result, s.row)
	}
	return result
}
