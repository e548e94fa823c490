package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"memoryping/internal/model"
	"memoryping/internal/nlp"
	"memoryping/internal/repository"
)

// User-input errors. All are recoverable and reported through the call
// that produced them.
var (
	ErrNoTask   = errors.New("no task and time found in the text")
	ErrBadTime  = errors.New("could not understand the time expression")
	ErrPastTime = errors.New("that time is already in the past")
	ErrNotFound = errors.New("reminder not found")
)

// Filter narrows ListActive results. Empty fields match everything.
type Filter struct {
	Category string
	Priority string
}

// CounterHook observes counter-increment events. The core emits them
// for the external gamification layer and never interprets the totals.
type CounterHook func(owner string, kind model.CounterKind, totals model.Counters)

// ReminderService is the core API: natural-language creation plus the
// lifecycle operations.
type ReminderService struct {
	reminders *repository.ReminderRepository
	profiles  *repository.ProfileRepository
	counters  *repository.CounterRepository
	scheduler *SchedulerService
	log       zerolog.Logger
	hook      CounterHook
}

func NewReminderService(
	reminders *repository.ReminderRepository,
	profiles *repository.ProfileRepository,
	counters *repository.CounterRepository,
	scheduler *SchedulerService,
	log zerolog.Logger,
) *ReminderService {
	return &ReminderService{
		reminders: reminders,
		profiles:  profiles,
		counters:  counters,
		scheduler: scheduler,
		log:       log,
	}
}

// SetCounterHook registers an observer for counter-increment events.
func (s *ReminderService) SetCounterHook(hook CounterHook) {
	s.hook = hook
}

// Create materializes a reminder from free-form text. The reference
// instant is caller-supplied; it is shifted into the owner's timezone
// before any time expression is resolved.
func (s *ReminderService) Create(ctx context.Context, owner, raw string, now time.Time) (*model.Reminder, error) {
	loc, err := s.Timezone(ctx, owner)
	if err != nil {
		return nil, err
	}
	local := now.In(loc)

	meta := nlp.ExtractMetadata(raw)
	task, timeExpr, ok := nlp.SplitTaskTime(meta.Cleaned)
	if !ok || task == "" {
		return nil, ErrNoTask
	}

	due, err := nlp.Resolve(timeExpr, local)
	if err != nil {
		return nil, ErrBadTime
	}
	if !due.After(local) {
		return nil, ErrPastTime
	}

	reminder := &model.Reminder{
		ID:         uuid.NewString(),
		Owner:      owner,
		Text:       task,
		DueAt:      due.UTC(),
		Category:   meta.Category,
		Priority:   meta.Priority,
		Notes:      meta.Notes,
		Recurrence: meta.Recurrence,
		SharedWith: meta.SharedWith,
		Status:     model.StatusPending,
	}

	if err := s.reminders.Create(ctx, reminder); err != nil {
		return nil, err
	}
	s.bump(ctx, owner, model.CounterCreated)
	s.scheduler.Arm(reminder)

	s.log.Info().Str("id", reminder.ID).Str("owner", owner).
		Time("due_at", reminder.DueAt).Str("recurrence", string(reminder.Recurrence)).
		Msg("reminder created")
	return reminder, nil
}

// Snooze delays a reminder by the given minutes and re-arms its timer.
// Safe against an in-flight fire: the fire path re-reads the store, so
// whichever write lands last determines the next delivery.
func (s *ReminderService) Snooze(ctx context.Context, id string, minutes int) (time.Time, error) {
	s.scheduler.Cancel(id)
	updated, err := s.reminders.Postpone(ctx, id, time.Duration(minutes)*time.Minute)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, err
	}
	s.bump(ctx, updated.Owner, model.CounterSnoozed)
	s.scheduler.Arm(updated)
	return updated.DueAt, nil
}

// Complete acknowledges a delivered (or pending) reminder and purges
// it. Delivery alone never completes a reminder; this call is the
// explicit acknowledgment.
func (s *ReminderService) Complete(ctx context.Context, id string) (bool, error) {
	reminder, err := s.reminders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	removed, err := s.reminders.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		s.scheduler.Cancel(id)
		s.bump(ctx, reminder.Owner, model.CounterCompleted)
	}
	return removed, nil
}

// Delete purges a reminder without counting it as completed.
func (s *ReminderService) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := s.reminders.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		s.scheduler.Cancel(id)
	}
	return removed, nil
}

// ListActive returns pending reminders visible to owner, soonest
// first, optionally narrowed by category and priority.
func (s *ReminderService) ListActive(ctx context.Context, owner string, filter Filter) ([]model.Reminder, error) {
	reminders, err := s.reminders.ListPending(ctx, owner)
	if err != nil {
		return nil, err
	}
	if filter.Category == "" && filter.Priority == "" {
		return reminders, nil
	}
	filtered := reminders[:0]
	for _, reminder := range reminders {
		if filter.Category != "" && reminder.Category != filter.Category {
			continue
		}
		if filter.Priority != "" && reminder.Priority != filter.Priority {
			continue
		}
		filtered = append(filtered, reminder)
	}
	return filtered, nil
}

// SetTimezone validates and stores an IANA zone on the owner's profile.
func (s *ReminderService) SetTimezone(ctx context.Context, owner, zone string) error {
	if _, err := time.LoadLocation(zone); err != nil {
		return fmt.Errorf("unknown timezone %q", zone)
	}
	return s.profiles.SetTimezone(ctx, owner, zone)
}

// Timezone returns the owner's location, creating the profile lazily.
// An unparsable stored zone falls back to UTC rather than failing the
// caller's request.
func (s *ReminderService) Timezone(ctx context.Context, owner string) (*time.Location, error) {
	profile, err := s.profiles.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(profile.Timezone)
	if err != nil {
		s.log.Warn().Str("owner", owner).Str("zone", profile.Timezone).Msg("stored timezone unusable, using UTC")
		return time.UTC, nil
	}
	return loc, nil
}

// Owners returns every owner with a profile, for broadcast jobs.
func (s *ReminderService) Owners(ctx context.Context) ([]string, error) {
	profiles, err := s.profiles.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	owners := make([]string, 0, len(profiles))
	for _, profile := range profiles {
		owners = append(owners, profile.Owner)
	}
	return owners, nil
}

// Stats returns the owner's counter totals for external display.
func (s *ReminderService) Stats(ctx context.Context, owner string) (model.Counters, error) {
	return s.counters.Get(ctx, owner)
}

func (s *ReminderService) bump(ctx context.Context, owner string, kind model.CounterKind) {
	totals, err := s.counters.Increment(ctx, owner, kind)
	if err != nil {
		s.log.Error().Err(err).Str("owner", owner).Str("kind", string(kind)).Msg("counter increment failed")
		return
	}
	if s.hook != nil {
		s.hook(owner, kind, totals)
	}
}
