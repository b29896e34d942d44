// Package calendar synthesizes the dim_date dimension.
package calendar

import (
	"time"

	"market-etl/internal/domain"
)

// Build returns one row per calendar day in [start, end], inclusive,
// weekends and holidays included. Returns nil if end is before start.
func Build(start, end time.Time) []*domain.CalendarRow {
	start = domain.TruncateDate(start)
	end = domain.TruncateDate(end)
	if end.Before(start) {
		return nil
	}

	days := int(end.Sub(start).Hours()/24) + 1
	rows := make([]*domain.CalendarRow, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		rows = append(rows, Row(d))
	}
	return rows
}

// Row derives the calendar attributes of a single date.
func Row(date time.Time) *domain.CalendarRow {
	date = domain.TruncateDate(date)
	next := date.AddDate(0, 0, 1)
	_, week := date.ISOWeek()

	return &domain.CalendarRow{
		Date:         date,
		Year:         date.Year(),
		Quarter:      quarter(date.Month()),
		Month:        int(date.Month()),
		Week:         week,
		Day:          date.Day(),
		DayOfWeek:    (int(date.Weekday()) + 6) % 7,
		IsMonthEnd:   next.Month() != date.Month(),
		IsQuarterEnd: quarter(next.Month()) != quarter(date.Month()),
		IsYearEnd:    next.Year() != date.Year(),
	}
}

// DateRange returns the min and max date across rows.
// ok is false when rows is empty.
func DateRange(rows []*domain.PriceRow) (minDate, maxDate time.Time, ok bool) {
	for _, r := range rows {
		if !ok {
			minDate, maxDate, ok = r.Date, r.Date, true
			continue
		}
		if r.Date.Before(minDate) {
			minDate = r.Date
		}
		if r.Date.After(maxDate) {
			maxDate = r.Date
		}
	}
	return minDate, maxDate, ok
}

func quarter(m time.Month) int {
	return (int(m)-1)/3 + 1
}
