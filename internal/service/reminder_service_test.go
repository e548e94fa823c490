package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"memoryping/internal/model"
	"memoryping/internal/repository"
)

type fakeNotifier struct {
	mu         sync.Mutex
	deliveries []Delivery
	ch         chan Delivery
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{ch: make(chan Delivery, 8)}
}

func (f *fakeNotifier) Deliver(ctx context.Context, d Delivery) error {
	f.mu.Lock()
	f.deliveries = append(f.deliveries, d)
	f.mu.Unlock()
	select {
	case f.ch <- d:
	default:
	}
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deliveries)
}

type testEnv struct {
	svc       *ReminderService
	scheduler *SchedulerService
	reminders *repository.ReminderRepository
	notifier  *fakeNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}

	reminders := repository.NewReminderRepository(db)
	profiles := repository.NewProfileRepository(db, "UTC")
	counters := repository.NewCounterRepository(db)

	scheduler := NewSchedulerService(reminders, time.UTC, zerolog.Nop())
	notifier := newFakeNotifier()
	scheduler.SetNotifier(notifier)
	t.Cleanup(scheduler.Stop)

	svc := NewReminderService(reminders, profiles, counters, scheduler, zerolog.Nop())
	return &testEnv{svc: svc, scheduler: scheduler, reminders: reminders, notifier: notifier}
}

func (e *testEnv) timerCount() int {
	e.scheduler.mu.Lock()
	defer e.scheduler.mu.Unlock()
	return len(e.scheduler.timers)
}

func TestCreateListRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reminder, err := env.svc.Create(ctx, "100", "Remind me to email the client in 2h #work !high", time.Now())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := env.svc.ListActive(ctx, "100", Filter{})
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(got))
	}
	if got[0].Text != reminder.Text || got[0].Category != "work" ||
		got[0].Priority != "high" || got[0].Recurrence != model.RecurNone {
		t.Fatalf("round trip mismatch: %+v", got[0])
	}
	if env.timerCount() != 1 {
		t.Fatalf("expected 1 armed timer, got %d", env.timerCount())
	}
}

func TestCreateUserInputErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := env.svc.Create(ctx, "100", "hello there", now); !errors.Is(err, ErrNoTask) {
		t.Fatalf("err = %v, want ErrNoTask", err)
	}
	if _, err := env.svc.Create(ctx, "100", "Remind me to call mom at some point soonish", now); !errors.Is(err, ErrBadTime) {
		t.Fatalf("err = %v, want ErrBadTime", err)
	}
	// A zero offset resolves to the reference itself, which is rejected.
	if _, err := env.svc.Create(ctx, "100", "Remind me to call mom in 0m", now); !errors.Is(err, ErrPastTime) {
		t.Fatalf("err = %v, want ErrPastTime", err)
	}
}

func TestListActiveFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := env.svc.Create(ctx, "100", "gym session in 1h #fitness !low", now); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.svc.Create(ctx, "100", "budget review in 2h #finance !high", now); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := env.svc.ListActive(ctx, "100", Filter{Category: "finance"})
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(got) != 1 || got[0].Category != "finance" {
		t.Fatalf("filtered = %+v", got)
	}

	got, err = env.svc.ListActive(ctx, "100", Filter{Priority: "low"})
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(got) != 1 || got[0].Priority != "low" {
		t.Fatalf("filtered = %+v", got)
	}
}

func TestSnoozeThenDeleteLeavesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reminder, err := env.svc.Create(ctx, "100", "water plants in 1h", time.Now())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newDue, err := env.svc.Snooze(ctx, reminder.ID, 10)
	if err != nil {
		t.Fatalf("Snooze: %v", err)
	}
	if !newDue.Equal(reminder.DueAt.Add(10 * time.Minute)) {
		t.Fatalf("snoozed due = %v, want %v", newDue, reminder.DueAt.Add(10*time.Minute))
	}

	removed, err := env.svc.Delete(ctx, reminder.ID)
	if err != nil || !removed {
		t.Fatalf("Delete = (%v, %v)", removed, err)
	}

	if env.timerCount() != 0 {
		t.Fatalf("expected no armed timers, got %d", env.timerCount())
	}
	if _, err := env.reminders.FindByID(ctx, reminder.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("record still present, err = %v", err)
	}
}

func TestSnoozeUnknownID(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.Snooze(context.Background(), "missing", 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCompleteCountsAndPurges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reminder, err := env.svc.Create(ctx, "100", "submit taxes in 3h #finance", time.Now())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	done, err := env.svc.Complete(ctx, reminder.ID)
	if err != nil || !done {
		t.Fatalf("Complete = (%v, %v)", done, err)
	}
	done, err = env.svc.Complete(ctx, reminder.ID)
	if err != nil || done {
		t.Fatalf("second Complete = (%v, %v), want (false, nil)", done, err)
	}

	counters, err := env.svc.Stats(ctx, "100")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if counters.Created != 1 || counters.Completed != 1 {
		t.Fatalf("counters = %+v", counters)
	}
}

func TestCounterHookObservesEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var mu sync.Mutex
	var kinds []model.CounterKind
	env.svc.SetCounterHook(func(owner string, kind model.CounterKind, totals model.Counters) {
		mu.Lock()
		kinds = append(kinds, kind)
		mu.Unlock()
	})

	reminder, err := env.svc.Create(ctx, "100", "stretch in 1h", time.Now())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.svc.Snooze(ctx, reminder.ID, 5); err != nil {
		t.Fatalf("Snooze: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(kinds) != 2 || kinds[0] != model.CounterCreated || kinds[1] != model.CounterSnoozed {
		t.Fatalf("hook events = %v", kinds)
	}
}

func TestSharedReminderVisibleToBothOwners(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Create(ctx, "100", "plan the trip in 4h @200", time.Now()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, owner := range []string{"100", "200"} {
		got, err := env.svc.ListActive(ctx, owner, Filter{})
		if err != nil {
			t.Fatalf("ListActive(%s): %v", owner, err)
		}
		if len(got) != 1 {
			t.Fatalf("owner %s sees %d reminders, want 1", owner, len(got))
		}
	}
}

func TestTimezoneAffectsResolution(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.svc.SetTimezone(ctx, "100", "Asia/Kolkata"); err != nil {
		t.Fatalf("SetTimezone: %v", err)
	}
	if err := env.svc.SetTimezone(ctx, "100", "Atlantis/Nowhere"); err == nil {
		t.Fatal("expected error for unknown zone")
	}

	// 2024-04-01 12:00 UTC is 17:30 in Kolkata, so "at 5pm" has already
	// passed there and must land on the next local day.
	ref := time.Date(2024, time.April, 1, 12, 0, 0, 0, time.UTC)
	reminder, err := env.svc.Create(ctx, "100", "Remind me to call mom at 5pm", ref)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	kolkata, _ := time.LoadLocation("Asia/Kolkata")
	local := reminder.DueAt.In(kolkata)
	if local.Day() != 2 || local.Hour() != 17 || local.Minute() != 0 {
		t.Fatalf("due in Kolkata = %v, want Apr 2 17:00", local)
	}
}
