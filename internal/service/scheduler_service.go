package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"memoryping/internal/model"
	"memoryping/internal/recur"
	"memoryping/internal/repository"
)

// Delivery is the payload handed to the external delivery collaborator
// at fire time.
type Delivery struct {
	ID       string
	Owner    string
	Text     string
	Priority string
	Category string
}

// Notifier is the external delivery collaborator. The scheduler does
// not know what delivery does; callers treat it as idempotent.
type Notifier interface {
	Deliver(ctx context.Context, d Delivery) error
}

// SchedulerService keeps one pending timer per active reminder and
// wraps cron-based recurring jobs (the daily digest). A fired handler
// always re-reads the store before acting, so racing snooze or delete
// calls are benign: whichever store write wins determines the next
// fired time.
type SchedulerService struct {
	reminders *repository.ReminderRepository
	notifier  Notifier
	log       zerolog.Logger
	cron      *cron.Cron
	now       func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewSchedulerService(reminders *repository.ReminderRepository, loc *time.Location, log zerolog.Logger) *SchedulerService {
	return &SchedulerService{
		reminders: reminders,
		log:       log,
		cron:      cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		now:       time.Now,
		timers:    make(map[string]*time.Timer),
	}
}

// SetNotifier wires the delivery collaborator. It must be called
// before any timer is armed; the front end is constructed after the
// scheduler, so wiring happens in two steps.
func (s *SchedulerService) SetNotifier(notifier Notifier) {
	s.notifier = notifier
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Stop halts the cron jobs and cancels every outstanding timer. A
// handler already past its timer is allowed to finish.
func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.mu.Lock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
}

// Arm registers a one-shot timer for the reminder, replacing any
// existing one for the same id. An already-due reminder fires
// immediately.
func (s *SchedulerService) Arm(reminder *model.Reminder) {
	id := reminder.ID
	delay := reminder.DueAt.Sub(s.now())
	if delay <= 0 {
		go s.fire(id)
		return
	}

	s.mu.Lock()
	if old, ok := s.timers[id]; ok {
		old.Stop()
	}
	s.timers[id] = time.AfterFunc(delay, func() {
		s.fire(id)
	})
	s.mu.Unlock()
}

// Cancel stops the outstanding timer for id, if any. Best effort: a
// handler already running is not preempted, it will no-op on re-read.
func (s *SchedulerService) Cancel(id string) {
	s.mu.Lock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
}

// fire delivers one occurrence. The reminder is re-read first: if it
// was deleted or completed in the meantime there is nothing to do. For
// recurring reminders the due instant is advanced and persisted before
// delivery, so the record never observably holds a past occurrence.
func (s *SchedulerService) fire(id string) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()

	ctx := context.Background()
	reminder, err := s.reminders.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Error().Err(err).Str("id", id).Msg("fire: re-read failed")
		}
		return
	}

	d := Delivery{
		ID:       reminder.ID,
		Owner:    reminder.Owner,
		Text:     reminder.Text,
		Priority: reminder.Priority,
		Category: reminder.Category,
	}

	if reminder.Recurrence != model.RecurNone {
		next := recur.Next(reminder.DueAt, reminder.Recurrence)
		updated, err := s.reminders.UpdateDueAt(ctx, id, next)
		if err != nil {
			s.log.Error().Err(err).Str("id", id).Msg("fire: advance recurrence failed")
		} else {
			s.Arm(updated)
		}
	}

	if s.notifier == nil {
		s.log.Warn().Str("id", id).Msg("fire: no notifier wired, dropping delivery")
		return
	}
	if err := s.notifier.Deliver(ctx, d); err != nil {
		s.log.Error().Err(err).Str("id", id).Str("owner", d.Owner).Msg("fire: delivery failed")
	}
}

// RescheduleAll rebuilds every timer from the store, run once at
// process start. Overdue one-shot reminders are dropped rather than
// delivered late; overdue recurring ones fire immediately and advance
// through the normal fire path.
func (s *SchedulerService) RescheduleAll(ctx context.Context) error {
	reminders, err := s.reminders.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("reschedule: %w", err)
	}

	now := s.now()
	armed, dropped := 0, 0
	for i := range reminders {
		reminder := &reminders[i]
		if reminder.Status != model.StatusPending {
			continue
		}
		if !reminder.DueAt.After(now) && reminder.Recurrence == model.RecurNone {
			if _, err := s.reminders.Delete(ctx, reminder.ID); err != nil {
				s.log.Error().Err(err).Str("id", reminder.ID).Msg("reschedule: purge failed")
				continue
			}
			s.log.Info().Str("id", reminder.ID).Str("owner", reminder.Owner).
				Time("due_at", reminder.DueAt).Msg("dropping reminder overdue across restart")
			dropped++
			continue
		}
		s.Arm(reminder)
		armed++
	}

	s.log.Info().Int("armed", armed).Int("dropped", dropped).Msg("rescheduled reminders from store")
	return nil
}

// ScheduleDaily registers a daily cron job at the given HH:MM time string.
func (s *SchedulerService) ScheduleDaily(timeStr string, job func()) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

// ScheduleInterval registers a periodic job every given duration.
func (s *SchedulerService) ScheduleInterval(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	spec := fmt.Sprintf("@every %ds", seconds)
	return s.cron.AddFunc(spec, job)
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
