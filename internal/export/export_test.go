package export

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"market-etl/internal/domain"
	"market-etl/internal/extraction/stub"
	"market-etl/internal/pipeline"
)

func fp(v float64) *float64 { return &v }

func day(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleTables() *pipeline.Tables {
	return &pipeline.Tables{
		DimDate: []*domain.CalendarRow{{
			Date: day("2023-12-31"), Year: 2023, Quarter: 4, Month: 12, Week: 52, Day: 31, DayOfWeek: 6,
			IsMonthEnd: true, IsQuarterEnd: true, IsYearEnd: true,
		}},
		DimTicker: []*domain.TickerRow{{
			Ticker: "EURUSD", Name: "Euro, US Dollar", AssetClass: domain.AssetClassFX,
			Group: "fx_majors", Currency: "USD", Source: "AlphaVantage",
		}},
		FactPrices: []*domain.PriceRow{{
			Date: day("2023-12-29"), Ticker: "EURUSD", Open: 1.1, High: 1.1065, Low: 1.0951, Close: 1.1039,
			AdjClose: 1.1039, AssetClass: domain.AssetClassFX, Currency: "USD", Source: "FX_DAILY",
		}},
		FactFeatures: []*domain.FeatureRow{{
			Date: day("2023-12-29"), Ticker: "EURUSD", Ret1D: fp(0.1),
			PeakToDate: 1.1039, DrawdownPct: 0, TrueRange: 0.0114, VolRegime: domain.VolHigh,
		}},
		FactSnapshot: []*domain.SnapshotRow{{
			Ticker: "EURUSD", LastDate: day("2023-12-29"), LastClose: 1.1039, Pct1D: fp(-0.0025), MaxDD1Y: fp(0),
		}},
		Metadata: &domain.RunMetadata{
			RunID:            "20240603T140509Z",
			RunTimestampUTC:  time.Date(2024, 6, 3, 14, 5, 9, 0, time.UTC),
			RowsWritten:      1,
			TickersSucceeded: []string{"AAPL", "EURUSD"},
			TickersFailed:    nil,
			APICalls:         2,
		},
	}
}

func render(t *testing.T, table string, tables *pipeline.Tables) []string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table, tables))
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

func TestWriteCSV_Headers(t *testing.T) {
	want := map[string]string{
		pipeline.TableDimDate:      "date,year,quarter,month,week,day,day_of_week,is_month_end,is_quarter_end,is_year_end",
		pipeline.TableDimTicker:    "ticker,name,asset_class,group,currency,source",
		pipeline.TableFactPrices:   "date,ticker,open,high,low,close,adj_close,volume,asset_class,currency,source",
		pipeline.TableFactFeatures: "date,ticker,ret_1d,log_ret_1d,ma_20,ma_50,ma_200,vol_20,vol_60,peak_to_date,drawdown_pct,bb_mid_20,bb_up_20,bb_low_20,true_range,atr_14,trend_regime,vol_regime",
		pipeline.TableFactSnapshot: "ticker,last_date,last_close,pct_1d,pct_1w,pct_1m,pct_ytd,vol_60,max_dd_1y",
		pipeline.TableETLMetadata:  "run_id,run_timestamp_utc,rows_written,tickers_succeeded,tickers_failed,api_calls,notes",
	}

	for _, table := range pipeline.TableNames {
		lines := render(t, table, &pipeline.Tables{})
		assert.Equal(t, want[table], lines[0], table)
	}
}

func TestWriteCSV_Rows(t *testing.T) {
	tables := sampleTables()

	assert.Equal(t, "2023-12-31,2023,4,12,52,31,6,True,True,True", render(t, pipeline.TableDimDate, tables)[1])
	assert.Equal(t, `EURUSD,"Euro, US Dollar",FX,fx_majors,USD,AlphaVantage`, render(t, pipeline.TableDimTicker, tables)[1])
	assert.Equal(t, "2023-12-29,EURUSD,1.1,1.1065,1.0951,1.1039,1.1039,,FX,USD,FX_DAILY", render(t, pipeline.TableFactPrices, tables)[1])
	assert.Equal(t, "2023-12-29,EURUSD,0.1,,,,,,,1.1039,0,,,,0.0114,,,High", render(t, pipeline.TableFactFeatures, tables)[1])
	assert.Equal(t, "EURUSD,2023-12-29,1.1039,-0.0025,,,,,0", render(t, pipeline.TableFactSnapshot, tables)[1])
	assert.Equal(t, `20240603T140509Z,2024-06-03T14:05:09Z,1,"AAPL,EURUSD",,2,`, render(t, pipeline.TableETLMetadata, tables)[1])
}

func TestWriteCSV_UnknownTable(t *testing.T) {
	assert.Error(t, WriteCSV(io.Discard, "fact_trades", sampleTables()))
}

func TestWriteRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "data")
	docs := filepath.Join(t.TempDir(), "docs", "data")

	dir, err := WriteRun(sampleTables(), out, docs)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "20240603T140509Z"), dir)

	for _, table := range pipeline.TableNames {
		versioned, err := os.ReadFile(filepath.Join(dir, table+".csv"))
		require.NoError(t, err)
		copied, err := os.ReadFile(filepath.Join(docs, table+".csv"))
		require.NoError(t, err)
		assert.Equal(t, versioned, copied, table)
	}
}

func TestWriteRun_NoDocsDir(t *testing.T) {
	dir, err := WriteRun(sampleTables(), t.TempDir(), "")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "etl_metadata.csv"))
	assert.NoError(t, err)
}

func TestPipelineOutputIsByteIdentical(t *testing.T) {
	ticker := domain.Ticker{Symbol: "SPY", Name: "S&P 500", AssetClass: domain.AssetClassEquity, Group: "etf", Currency: "USD"}
	points := make([]domain.RawSeriesPoint, 260)
	for i := range points {
		c := 400 + 5*float64(i%17) - float64(i%5)
		points[i] = domain.RawSeriesPoint{
			Ticker: "SPY", Date: day("2023-01-02").AddDate(0, 0, i),
			Open: fp(c), High: fp(c + 2), Low: fp(c - 2), Close: fp(c), Volume: fp(1e7),
			AssetClass: domain.AssetClassEquity, Currency: "USD", Source: "TIME_SERIES_DAILY",
		}
	}

	run := func() map[string][]byte {
		src := stub.NewSource().WithSeries("SPY", points)
		tables, err := pipeline.New(pipeline.Options{
			Source:  src,
			Tickers: []domain.Ticker{ticker},
			Logger:  log.New(io.Discard, "", 0),
		}).WithClock(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }).Run(context.Background())
		require.NoError(t, err)

		out := make(map[string][]byte)
		for _, table := range pipeline.TableNames {
			var buf bytes.Buffer
			require.NoError(t, WriteCSV(&buf, table, tables))
			out[table] = buf.Bytes()
		}
		return out
	}

	first, second := run(), run()
	for _, table := range pipeline.TableNames {
		assert.True(t, bytes.Equal(first[table], second[table]), "%s differs between runs", table)
	}
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.xlsx")
	require.NoError(t, WriteWorkbook(sampleTables(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, pipeline.TableNames, f.GetSheetList())

	rows, err := f.GetRows(pipeline.TableFactPrices)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Columns[pipeline.TableFactPrices], rows[0])
	assert.Equal(t, "EURUSD", rows[1][1])

	closeCell, err := f.GetCellValue(pipeline.TableFactPrices, "F2")
	require.NoError(t, err)
	assert.Equal(t, "1.1039", closeCell)
}
