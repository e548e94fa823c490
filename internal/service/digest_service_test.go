package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"memoryping/internal/model"
)

func TestDigestPartitionsOverdueAndUpcoming(t *testing.T) {
	env := newTestEnv(t)
	digest := NewDigestService(env.svc)
	ctx := context.Background()
	now := time.Now()

	seedReminder(t, env, "late", now.Add(-3*time.Hour), model.RecurNone)
	seedReminder(t, env, "soon", now.Add(2*time.Hour), model.RecurDaily)

	out, err := digest.Digest(ctx, "100", now)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}

	overdueIdx := strings.Index(out, "Overdue")
	upcomingIdx := strings.Index(out, "Coming up")
	if overdueIdx == -1 || upcomingIdx == -1 || overdueIdx > upcomingIdx {
		t.Fatalf("sections missing or misordered:\n%s", out)
	}
	if strings.Index(out, "seeded late") > strings.Index(out, "seeded soon") {
		t.Fatalf("overdue reminder not listed first:\n%s", out)
	}
	if !strings.Contains(out, "repeats daily") {
		t.Fatalf("recurring marker missing:\n%s", out)
	}
}

func TestDigestEmptySchedule(t *testing.T) {
	env := newTestEnv(t)
	digest := NewDigestService(env.svc)

	out, err := digest.Digest(context.Background(), "100", time.Now())
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if !strings.Contains(out, "nothing scheduled") {
		t.Fatalf("empty digest missing placeholder:\n%s", out)
	}
}

func TestTodayFiltersByLocalCalendarDay(t *testing.T) {
	env := newTestEnv(t)
	digest := NewDigestService(env.svc)
	ctx := context.Background()

	// Noon UTC keeps the +/-4h seeds on the same UTC calendar day and
	// tomorrow's seed on the next one.
	now := time.Date(2024, time.April, 1, 12, 0, 0, 0, time.UTC)
	seedReminder(t, env, "today-1", now.Add(4*time.Hour), model.RecurNone)
	seedReminder(t, env, "today-2", now.Add(-4*time.Hour), model.RecurNone)
	seedReminder(t, env, "tomorrow", now.Add(24*time.Hour), model.RecurNone)

	out, err := digest.Today(ctx, "100", now)
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if !strings.Contains(out, "seeded today-1") || !strings.Contains(out, "seeded today-2") {
		t.Fatalf("today's reminders missing:\n%s", out)
	}
	if strings.Contains(out, "seeded tomorrow") {
		t.Fatalf("tomorrow's reminder leaked into today:\n%s", out)
	}
}
