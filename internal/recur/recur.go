package recur

import (
	"time"

	"memoryping/internal/model"
)

// Next returns the occurrence after t under rule. Monthly is a fixed
// 30-day offset rather than calendar-month arithmetic; weekday skips
// to the next business day. RecurNone returns t unchanged.
func Next(t time.Time, rule model.Recurrence) time.Time {
	switch rule {
	case model.RecurDaily:
		return t.AddDate(0, 0, 1)
	case model.RecurWeekly:
		return t.AddDate(0, 0, 7)
	case model.RecurMonthly:
		return t.AddDate(0, 0, 30)
	case model.RecurWeekday:
		next := t.AddDate(0, 0, 1)
		for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
			next = next.AddDate(0, 0, 1)
		}
		return next
	default:
		return t
	}
}
