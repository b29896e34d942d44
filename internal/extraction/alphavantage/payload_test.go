package alphavantage

import (
	"encoding/json"
	"errors"
	"testing"

	"market-etl/internal/normalization"
)

func decodePayload(t *testing.T, v interface{}) Payload {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return p
}

func TestParsePayload_DuplicateDateKeysKeepKeyOrder(t *testing.T) {
	p := decodePayload(t, map[string]interface{}{
		"Time Series (Daily)": map[string]map[string]string{
			"2024-01-02 ": {"1. open": "199", "2. high": "201", "3. low": "198", "4. close": "200"},
			"2024-01-02":  {"1. open": "99", "2. high": "101", "3. low": "98", "4. close": "100"},
			"2024-01-01":  {"1. open": "49", "2. high": "51", "3. low": "48", "4. close": "50"},
		},
	})

	for run := 0; run < 50; run++ {
		points, err := ParsePayload(p, aapl)
		if err != nil {
			t.Fatalf("ParsePayload: %v", err)
		}
		if len(points) != 3 {
			t.Fatalf("expected 3 points, got %d", len(points))
		}
		if *points[1].Close != 100 || *points[2].Close != 200 {
			t.Fatalf("run %d: expected same-date points ordered by raw key, got %v then %v",
				run, *points[1].Close, *points[2].Close)
		}

		rows, err := normalization.Normalize(aapl.Symbol, points, normalization.DedupLastIngested)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if len(rows) != 2 || rows[1].Close != 200 {
			t.Fatalf("run %d: expected surviving close 200, got %+v", run, rows[len(rows)-1])
		}
	}
}

func TestParsePayload_RejectsNonDecimalNumbers(t *testing.T) {
	for _, v := range []string{"NaN", "Inf", "-Infinity", "0x1p-2", "12,5", ""} {
		t.Run(v, func(t *testing.T) {
			p := decodePayload(t, map[string]interface{}{
				"Time Series (Daily)": map[string]map[string]string{
					"2024-01-02": {"1. open": "99", "2. high": "101", "3. low": "98", "4. close": v},
				},
			})
			_, err := ParsePayload(p, aapl)
			if !errors.Is(err, ErrUnexpectedPayload) {
				t.Fatalf("expected ErrUnexpectedPayload for %q, got %v", v, err)
			}
		})
	}
}

func TestParsePayload_AcceptsPlainDecimals(t *testing.T) {
	p := decodePayload(t, map[string]interface{}{
		"Time Series (Daily)": map[string]map[string]string{
			"2024-01-02": {"1. open": " 1.0857 ", "2. high": "1.09", "3. low": "1.08", "4. close": "1.0857"},
		},
	})
	points, err := ParsePayload(p, aapl)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if *points[0].Open != 1.0857 || *points[0].Close != 1.0857 {
		t.Errorf("unexpected prices %v %v", *points[0].Open, *points[0].Close)
	}
}
