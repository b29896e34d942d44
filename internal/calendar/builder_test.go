package calendar

import (
	"testing"
	"time"

	"market-etl/internal/domain"
)

func day(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBuild_InclusiveDayCount(t *testing.T) {
	tests := []struct {
		start, end string
		want       int
	}{
		{"2024-01-01", "2024-01-03", 3},
		{"2024-01-01", "2024-01-01", 1},
		{"2024-02-01", "2024-03-01", 30}, // leap year
		{"2023-01-01", "2023-12-31", 365},
		{"2024-03-09", "2024-03-11", 3},
	}

	for _, tt := range tests {
		rows := Build(day(tt.start), day(tt.end))
		if len(rows) != tt.want {
			t.Errorf("Build(%s, %s): expected %d rows, got %d", tt.start, tt.end, tt.want, len(rows))
		}
	}
}

func TestBuild_ReversedRange(t *testing.T) {
	if rows := Build(day("2024-01-03"), day("2024-01-01")); rows != nil {
		t.Errorf("expected nil for reversed range, got %d rows", len(rows))
	}
}

func TestBuild_ContiguousDates(t *testing.T) {
	rows := Build(day("2023-12-29"), day("2024-01-02"))
	for i := 1; i < len(rows); i++ {
		if !rows[i].Date.Equal(rows[i-1].Date.AddDate(0, 0, 1)) {
			t.Fatalf("gap between %v and %v", rows[i-1].Date, rows[i].Date)
		}
	}
}

func TestRow_DerivedAttributes(t *testing.T) {
	tests := []struct {
		date                    string
		year, quarter, month    int
		week, dayNum, dow       int
		monthEnd, qEnd, yearEnd bool
	}{
		// Monday
		{"2024-01-01", 2024, 1, 1, 1, 1, 0, false, false, false},
		// Sunday, ISO week 52 of 2023 shows on a 2023 date
		{"2023-12-31", 2023, 4, 12, 52, 31, 6, true, true, true},
		// Saturday before ISO week rollover
		{"2021-01-02", 2021, 1, 1, 53, 2, 5, false, false, false},
		{"2024-02-29", 2024, 1, 2, 9, 29, 3, true, false, false},
		{"2024-03-31", 2024, 1, 3, 13, 31, 6, true, true, false},
		{"2024-06-30", 2024, 2, 6, 26, 30, 6, true, true, false},
		{"2024-07-31", 2024, 3, 7, 31, 31, 2, true, false, false},
		{"2024-12-30", 2024, 4, 12, 1, 30, 0, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			r := Row(day(tt.date))
			if r.Year != tt.year || r.Quarter != tt.quarter || r.Month != tt.month {
				t.Errorf("y/q/m = %d/%d/%d, want %d/%d/%d", r.Year, r.Quarter, r.Month, tt.year, tt.quarter, tt.month)
			}
			if r.Week != tt.week {
				t.Errorf("week = %d, want %d", r.Week, tt.week)
			}
			if r.Day != tt.dayNum {
				t.Errorf("day = %d, want %d", r.Day, tt.dayNum)
			}
			if r.DayOfWeek != tt.dow {
				t.Errorf("day_of_week = %d, want %d", r.DayOfWeek, tt.dow)
			}
			if r.IsMonthEnd != tt.monthEnd || r.IsQuarterEnd != tt.qEnd || r.IsYearEnd != tt.yearEnd {
				t.Errorf("flags = %v/%v/%v, want %v/%v/%v",
					r.IsMonthEnd, r.IsQuarterEnd, r.IsYearEnd, tt.monthEnd, tt.qEnd, tt.yearEnd)
			}
		})
	}
}

func TestDateRange(t *testing.T) {
	if _, _, ok := DateRange(nil); ok {
		t.Error("expected ok=false for empty input")
	}

	rows := []*domain.PriceRow{
		{Ticker: "A", Date: day("2024-01-05")},
		{Ticker: "B", Date: day("2023-12-28")},
		{Ticker: "A", Date: day("2024-01-10")},
	}
	minDate, maxDate, ok := DateRange(rows)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if !minDate.Equal(day("2023-12-28")) || !maxDate.Equal(day("2024-01-10")) {
		t.Errorf("unexpected range %v - %v", minDate, maxDate)
	}
}
