package verification

import (
	"context"
	"fmt"
	"time"

	"market-etl/internal/domain"
	"market-etl/internal/pipeline"
	"market-etl/internal/storage"
)

// RowResult describes one computed row that does not match storage.
type RowResult struct {
	Table       string
	Ticker      string
	Date        time.Time
	Missing     bool // no stored row for the key
	Divergences []FieldDivergence
}

// Report summarizes a reconciliation.
type Report struct {
	CheckedRows   int
	MatchedRows   int
	MissingRows   int
	DivergentRows int
	Results       []RowResult // mismatches only, in table then (ticker, date) order
}

// OK reports whether every checked row matched.
func (r *Report) OK() bool {
	return r.MissingRows == 0 && r.DivergentRows == 0
}

func (r *Report) add(res RowResult) {
	r.CheckedRows++
	switch {
	case res.Missing:
		r.MissingRows++
	case len(res.Divergences) > 0:
		r.DivergentRows++
	default:
		r.MatchedRows++
		return
	}
	r.Results = append(r.Results, res)
}

// Reconciler compares a run's fact tables with the warehouse.
type Reconciler struct {
	prices   storage.PriceStore
	features storage.FeatureStore
}

// NewReconciler creates a Reconciler. A nil store skips its table.
func NewReconciler(prices storage.PriceStore, features storage.FeatureStore) *Reconciler {
	return &Reconciler{prices: prices, features: features}
}

// Reconcile checks every fact row of t against its stored counterpart.
func (v *Reconciler) Reconcile(ctx context.Context, t *pipeline.Tables) (*Report, error) {
	report := &Report{}

	if v.prices != nil {
		if err := v.reconcilePrices(ctx, t.FactPrices, report); err != nil {
			return nil, err
		}
	}
	if v.features != nil {
		if err := v.reconcileFeatures(ctx, t.FactFeatures, report); err != nil {
			return nil, err
		}
	}

	return report, nil
}

func (v *Reconciler) reconcilePrices(ctx context.Context, rows []*domain.PriceRow, report *Report) error {
	for _, group := range groupByTicker(len(rows), func(i int) string { return rows[i].Ticker }) {
		first, last := rows[group.from], rows[group.to-1]

		stored, err := v.prices.GetByDateRange(ctx, first.Ticker, first.Date, last.Date)
		if err != nil {
			return fmt.Errorf("load stored prices of %s: %w", first.Ticker, err)
		}
		byDate := make(map[string]*domain.PriceRow, len(stored))
		for _, s := range stored {
			byDate[domain.FormatDate(s.Date)] = s
		}

		for _, r := range rows[group.from:group.to] {
			res := RowResult{Table: pipeline.TableFactPrices, Ticker: r.Ticker, Date: r.Date}
			if s, ok := byDate[domain.FormatDate(r.Date)]; ok {
				res.Divergences = ComparePriceRows(s, r)
			} else {
				res.Missing = true
			}
			report.add(res)
		}
	}
	return nil
}

func (v *Reconciler) reconcileFeatures(ctx context.Context, rows []*domain.FeatureRow, report *Report) error {
	for _, group := range groupByTicker(len(rows), func(i int) string { return rows[i].Ticker }) {
		ticker := rows[group.from].Ticker

		stored, err := v.features.GetByTicker(ctx, ticker)
		if err != nil {
			return fmt.Errorf("load stored features of %s: %w", ticker, err)
		}
		byDate := make(map[string]*domain.FeatureRow, len(stored))
		for _, s := range stored {
			byDate[domain.FormatDate(s.Date)] = s
		}

		for _, r := range rows[group.from:group.to] {
			res := RowResult{Table: pipeline.TableFactFeatures, Ticker: r.Ticker, Date: r.Date}
			if s, ok := byDate[domain.FormatDate(r.Date)]; ok {
				res.Divergences = CompareFeatureRows(s, r)
			} else {
				res.Missing = true
			}
			report.add(res)
		}
	}
	return nil
}

type span struct{ from, to int }

// groupByTicker splits rows sorted by (ticker, date) into per-ticker spans.
func groupByTicker(n int, ticker func(i int) string) []span {
	var spans []span
	for i := 0; i < n; {
		j := i + 1
		for j < n && ticker(j) == ticker(i) {
			j++
		}
		spans = append(spans, span{from: i, to: j})
		i = j
	}
	return spans
}
