package models

import "time"

// TimeRange represents the selected history time range.
type TimeRange int

const (
	// TimeRange7Days shows data from the last 7 days.
	TimeRange7Days TimeRange = iota
	// TimeRange30Days shows data from the last 30 days.
	TimeRange30Days
	// TimeRange1Year shows data from the last year.
	TimeRange1Year
	// TimeRangeAllTime shows all stored data.
	TimeRangeAllTime
)

// String returns the display name for a time range.
func (t TimeRange) String() string {
	switch t {
	case TimeRange7Days:
		return "7 Days"
	case TimeRange30Days:
		return "30 Days"
	case TimeRange1Year:
		return "1 Year"
	case TimeRangeAllTime:
		return "All Time"
	default:
		return "Unknown"
	}
}

// Days returns the number of days in the time range (0 for all time).
func (t TimeRange) Days() int {
	switch t {
	case TimeRange7Days:
		return 7
	case TimeRange30Days:
		return 30
	case TimeRange1Year:
		return 365
	case TimeRangeAllTime:
		return 0
	default:
		return 30
	}
}

// Since returns the lower bound of the range relative to now. The zero time
// means no bound.
func (t TimeRange) Since(now time.Time) time.Time {
	days := t.Days()
	if days == 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -days)
}

// Next returns the next time range in the cycle.
func (t TimeRange) Next() TimeRange {
	return (t + 1) % 4
}
