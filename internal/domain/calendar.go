package domain

import "time"

// CalendarRow represents one dim_date row.
// Every field besides Date is a pure function of Date.
type CalendarRow struct {
	Date         time.Time
	Year         int
	Quarter      int
	Month        int
	Week         int // ISO 8601 week number
	Day          int
	DayOfWeek    int // Monday = 0 ... Sunday = 6
	IsMonthEnd   bool
	IsQuarterEnd bool
	IsYearEnd    bool
}
