package reports

import (
	"time"
)

// Range names accepted by ResolveRange.
const (
	RangeDay     = "day"
	RangeWeek    = "week"
	RangeMonth   = "month"
	RangeQuarter = "quarter"
	RangeYear    = "year"
	RangeCustom  = "custom"
)

// Range is an inclusive span of calendar days.
type Range struct {
	Name  string    `json:"name"`
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// Until returns the exclusive upper bound for timestamp comparisons.
func (r Range) Until() time.Time {
	return r.End.AddDate(0, 0, 1)
}

// Label formats the range for export headings.
func (r Range) Label() string {
	return r.Start.Format("2006-01-02") + " to " + r.End.Format("2006-01-02")
}

// ResolveRange turns a range name into concrete dates relative to now.
// Custom ranges fall back to the last 30 days for missing bounds.
func ResolveRange(name string, start, end *time.Time, now time.Time) (Range, error) {
	today := truncateDay(now)
	if name == "" {
		name = RangeMonth
	}
	rng := Range{Name: name, End: today}
	switch name {
	case RangeDay:
		rng.Start = today
	case RangeWeek:
		rng.Start = today.AddDate(0, 0, -7)
	case RangeMonth:
		rng.Start = today.AddDate(0, 0, -30)
	case RangeQuarter:
		rng.Start = today.AddDate(0, 0, -90)
	case RangeYear:
		rng.Start = today.AddDate(-1, 0, 0)
	case RangeCustom:
		rng.Start = today.AddDate(0, 0, -30)
		if start != nil {
			rng.Start = truncateDay(*start)
		}
		if end != nil {
			rng.End = truncateDay(*end)
		}
		if rng.End.Before(rng.Start) {
			return Range{}, ErrInvertedRange
		}
	default:
		return Range{}, ErrUnknownRange
	}
	return rng, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
