package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTickerOutcomes(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.TickersTotal.WithLabelValues("failed", "normalization"))
	RecordTickerFailed("normalization")
	after := testutil.ToFloat64(DefaultMetrics.TickersTotal.WithLabelValues("failed", "normalization"))
	if after-before != 1 {
		t.Errorf("expected counter to grow by 1, got %v", after-before)
	}
}

func TestRecordStoreWriteCountsErrors(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.StoreWriteErrors.WithLabelValues("fact_prices"))
	RecordStoreWrite("fact_prices", 0.01, nil)
	RecordStoreWrite("fact_prices", 0.01, errors.New("boom"))
	after := testutil.ToFloat64(DefaultMetrics.StoreWriteErrors.WithLabelValues("fact_prices"))
	if after-before != 1 {
		t.Errorf("expected one error recorded, got %v", after-before)
	}
}

func TestRecordRows(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.RowsProduced.WithLabelValues("dim_date"))
	RecordRows("dim_date", 3)
	after := testutil.ToFloat64(DefaultMetrics.RowsProduced.WithLabelValues("dim_date"))
	if after-before != 3 {
		t.Errorf("expected 3 rows recorded, got %v", after-before)
	}
}
