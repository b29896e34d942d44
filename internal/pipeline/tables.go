package pipeline

import "market-etl/internal/domain"

// Output table names.
const (
	TableDimDate      = "dim_date"
	TableDimTicker    = "dim_ticker"
	TableFactPrices   = "fact_prices"
	TableFactFeatures = "fact_features_daily"
	TableFactSnapshot = "fact_latest_snapshot"
	TableETLMetadata  = "etl_metadata"
)

// TableNames lists every output table in export order.
var TableNames = []string{
	TableDimDate,
	TableDimTicker,
	TableFactPrices,
	TableFactFeatures,
	TableFactSnapshot,
	TableETLMetadata,
}

// Tables is the complete output of one run.
// Fact tables are sorted by (ticker, date), the snapshot by ticker,
// dim_ticker by (asset class, group, ticker).
type Tables struct {
	DimDate      []*domain.CalendarRow
	DimTicker    []*domain.TickerRow
	FactPrices   []*domain.PriceRow
	FactFeatures []*domain.FeatureRow
	FactSnapshot []*domain.SnapshotRow
	Metadata     *domain.RunMetadata
}

// RowCounts returns the number of rows per table.
func (t *Tables) RowCounts() map[string]int {
	counts := map[string]int{
		TableDimDate:      len(t.DimDate),
		TableDimTicker:    len(t.DimTicker),
		TableFactPrices:   len(t.FactPrices),
		TableFactFeatures: len(t.FactFeatures),
		TableFactSnapshot: len(t.FactSnapshot),
		TableETLMetadata:  0,
	}
	if t.Metadata != nil {
		counts[TableETLMetadata] = 1
	}
	return counts
}
