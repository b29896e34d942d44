// Package export renders pipeline tables as CSV files and an Excel workbook.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"market-etl/internal/domain"
	"market-etl/internal/pipeline"
)

// Columns per table, in contract order.
var Columns = map[string][]string{
	pipeline.TableDimDate: {
		"date", "year", "quarter", "month", "week", "day", "day_of_week",
		"is_month_end", "is_quarter_end", "is_year_end",
	},
	pipeline.TableDimTicker: {
		"ticker", "name", "asset_class", "group", "currency", "source",
	},
	pipeline.TableFactPrices: {
		"date", "ticker", "open", "high", "low", "close", "adj_close", "volume",
		"asset_class", "currency", "source",
	},
	pipeline.TableFactFeatures: {
		"date", "ticker", "ret_1d", "log_ret_1d", "ma_20", "ma_50", "ma_200",
		"vol_20", "vol_60", "peak_to_date", "drawdown_pct", "bb_mid_20", "bb_up_20",
		"bb_low_20", "true_range", "atr_14", "trend_regime", "vol_regime",
	},
	pipeline.TableFactSnapshot: {
		"ticker", "last_date", "last_close", "pct_1d", "pct_1w", "pct_1m", "pct_ytd",
		"vol_60", "max_dd_1y",
	},
	pipeline.TableETLMetadata: {
		"run_id", "run_timestamp_utc", "rows_written", "tickers_succeeded",
		"tickers_failed", "api_calls", "notes",
	},
}

// WriteCSV writes one table with its header row.
func WriteCSV(w io.Writer, table string, t *pipeline.Tables) error {
	header, ok := Columns[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, record := range Records(table, t) {
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Records renders the rows of one table as CSV fields. Absent values are
// empty strings.
func Records(table string, t *pipeline.Tables) [][]string {
	var out [][]string
	switch table {
	case pipeline.TableDimDate:
		for _, r := range t.DimDate {
			out = append(out, []string{
				domain.FormatDate(r.Date),
				itoa(r.Year), itoa(r.Quarter), itoa(r.Month), itoa(r.Week), itoa(r.Day), itoa(r.DayOfWeek),
				formatBool(r.IsMonthEnd), formatBool(r.IsQuarterEnd), formatBool(r.IsYearEnd),
			})
		}
	case pipeline.TableDimTicker:
		for _, r := range t.DimTicker {
			out = append(out, []string{r.Ticker, r.Name, string(r.AssetClass), r.Group, r.Currency, r.Source})
		}
	case pipeline.TableFactPrices:
		for _, r := range t.FactPrices {
			out = append(out, []string{
				domain.FormatDate(r.Date), r.Ticker,
				formatFloat(r.Open), formatFloat(r.High), formatFloat(r.Low), formatFloat(r.Close),
				formatFloat(r.AdjClose), formatOptional(r.Volume),
				string(r.AssetClass), r.Currency, r.Source,
			})
		}
	case pipeline.TableFactFeatures:
		for _, r := range t.FactFeatures {
			out = append(out, []string{
				domain.FormatDate(r.Date), r.Ticker,
				formatOptional(r.Ret1D), formatOptional(r.LogRet1D),
				formatOptional(r.MA20), formatOptional(r.MA50), formatOptional(r.MA200),
				formatOptional(r.Vol20), formatOptional(r.Vol60),
				formatFloat(r.PeakToDate), formatFloat(r.DrawdownPct),
				formatOptional(r.BBMid20), formatOptional(r.BBUp20), formatOptional(r.BBLow20),
				formatFloat(r.TrueRange), formatOptional(r.ATR14),
				string(r.TrendRegime), string(r.VolRegime),
			})
		}
	case pipeline.TableFactSnapshot:
		for _, r := range t.FactSnapshot {
			out = append(out, []string{
				r.Ticker, domain.FormatDate(r.LastDate), formatFloat(r.LastClose),
				formatOptional(r.Pct1D), formatOptional(r.Pct1W), formatOptional(r.Pct1M),
				formatOptional(r.PctYTD), formatOptional(r.Vol60), formatOptional(r.MaxDD1Y),
			})
		}
	case pipeline.TableETLMetadata:
		if md := t.Metadata; md != nil {
			out = append(out, []string{
				md.RunID, md.RunTimestampUTC.UTC().Format(time.RFC3339), itoa(md.RowsWritten),
				strings.Join(md.TickersSucceeded, ","), strings.Join(md.TickersFailed, ","),
				itoa(md.APICalls), md.Notes,
			})
		}
	}
	return out
}

func itoa(v int) string { return strconv.Itoa(v) }

// formatFloat uses the shortest representation that round-trips.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
