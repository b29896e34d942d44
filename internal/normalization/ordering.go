package normalization

import (
	"sort"

	"market-etl/internal/domain"
)

// SortPriceRows orders rows by (ticker ASC, date ASC).
// Rolling computations require this order.
func SortPriceRows(rows []*domain.PriceRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return comparePriceRows(rows[i], rows[j]) < 0
	})
}

// IsSorted reports whether rows are strictly ascending by (ticker, date),
// i.e. sorted and free of duplicate keys.
func IsSorted(rows []*domain.PriceRow) bool {
	for i := 1; i < len(rows); i++ {
		if comparePriceRows(rows[i-1], rows[i]) >= 0 {
			return false
		}
	}
	return true
}

// comparePriceRows returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func comparePriceRows(a, b *domain.PriceRow) int {
	if a.Ticker != b.Ticker {
		if a.Ticker < b.Ticker {
			return -1
		}
		return 1
	}
	if !a.Date.Equal(b.Date) {
		if a.Date.Before(b.Date) {
			return -1
		}
		return 1
	}
	return 0
}
