package qa

import (
	"fmt"
	"time"
)

// Period names a summary window.
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod validates a period name from the boundary.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodWeekly, PeriodMonthly:
		return Period(s), nil
	default:
		return "", fmt.Errorf("period must be weekly or monthly, got %q", s)
	}
}

// Days returns the window length in days.
func (p Period) Days() int {
	if p == PeriodMonthly {
		return 30
	}
	return 7
}

// Label returns the human-readable Korean label used in summary prompts.
func (p Period) Label() string {
	if p == PeriodMonthly {
		return "이번 달"
	}
	return "이번 주"
}

// Window returns the closed time range [now-days, now] for the period.
func (p Period) Window(now time.Time) (start, end time.Time) {
	end = now
	start = now.AddDate(0, 0, -p.Days())
	return start, end
}
