package recur

import (
	"testing"
	"time"

	"memoryping/internal/model"
)

func TestNextSingleStep(t *testing.T) {
	// Monday 09:00 UTC.
	base := time.Date(2024, time.April, 1, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		rule model.Recurrence
		want time.Time
	}{
		{model.RecurDaily, base.AddDate(0, 0, 1)},
		{model.RecurWeekly, base.AddDate(0, 0, 7)},
		{model.RecurMonthly, base.AddDate(0, 0, 30)},
		{model.RecurNone, base},
	}
	for _, tc := range cases {
		if got := Next(base, tc.rule); !got.Equal(tc.want) {
			t.Fatalf("Next(%v, %q) = %v, want %v", base, tc.rule, got, tc.want)
		}
	}
}

func TestNextAppliedTwiceDoublesTheDelta(t *testing.T) {
	base := time.Date(2024, time.April, 1, 9, 0, 0, 0, time.UTC)

	for _, rule := range []model.Recurrence{model.RecurDaily, model.RecurWeekly, model.RecurMonthly} {
		single := Next(base, rule).Sub(base)
		double := Next(Next(base, rule), rule).Sub(base)
		if double != 2*single {
			t.Fatalf("rule %q: double step %v, want %v", rule, double, 2*single)
		}
	}
}

func TestNextWeekdayNeverLandsOnWeekend(t *testing.T) {
	// Walk every weekday of two full weeks.
	start := time.Date(2024, time.April, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 14; i++ {
		from := start.AddDate(0, 0, i)
		got := Next(from, model.RecurWeekday)
		if wd := got.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Fatalf("Next(%v) landed on %v", from, wd)
		}
		if !got.After(from) {
			t.Fatalf("Next(%v) = %v did not advance", from, got)
		}
	}

	// Friday advances across the weekend to Monday.
	friday := time.Date(2024, time.April, 5, 9, 0, 0, 0, time.UTC)
	if got := Next(friday, model.RecurWeekday); got.Weekday() != time.Monday {
		t.Fatalf("Next(Friday) = %v, want Monday", got.Weekday())
	}
}
