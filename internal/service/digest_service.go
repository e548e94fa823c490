package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"memoryping/internal/model"
)

const (
	iconOverdue   = "⚠️"
	iconDueSoon   = "⏳"
	iconDefault   = "🟢"
	iconRecurring = "♻️"
)

var priorityIcons = map[string]string{
	model.PriorityHigh:   "🔴",
	model.PriorityMedium: "🟡",
	model.PriorityLow:    "🟢",
}

var categoryIcons = map[string]string{
	"work": "💼", "personal": "👤", "health": "💊",
	"shopping": "🛒", "fitness": "💪", "family": "👨‍👩‍👧",
	"finance": "💰", "education": "📚", "other": "📌",
}

// DigestService builds human-readable schedule summaries for the
// front end. It renders in the owner's timezone and never mutates
// anything.
type DigestService struct {
	svc *ReminderService
}

func NewDigestService(svc *ReminderService) *DigestService {
	return &DigestService{svc: svc}
}

// Digest returns an HTML summary of everything on the owner's plate:
// overdue first, then upcoming, recurring marked inline.
func (s *DigestService) Digest(ctx context.Context, owner string, now time.Time) (string, error) {
	loc, err := s.svc.Timezone(ctx, owner)
	if err != nil {
		return "", err
	}
	local := now.In(loc)

	reminders, err := s.svc.ListActive(ctx, owner, Filter{})
	if err != nil {
		return "", err
	}

	var overdue, upcoming []model.Reminder
	for _, reminder := range reminders {
		if reminder.DueAt.Before(now) {
			overdue = append(overdue, reminder)
		} else {
			upcoming = append(upcoming, reminder)
		}
	}
	sortByDue(overdue)
	sortByDue(upcoming)

	var builder strings.Builder
	builder.WriteString("📬 <b>Daily digest</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", local.Format("Mon, Jan 2")))

	if len(overdue) > 0 {
		builder.WriteString("⚠️ <b>Overdue</b>\n")
		for _, reminder := range overdue {
			builder.WriteString(formatReminderLine(reminder, local, loc))
		}
		builder.WriteByte('\n')
	}

	builder.WriteString("🔥 <b>Coming up</b>\n")
	if len(upcoming) == 0 {
		builder.WriteString("— nothing scheduled\n")
	} else {
		for _, reminder := range upcoming {
			builder.WriteString(formatReminderLine(reminder, local, loc))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

// Today returns the reminders due on the owner's current calendar day.
func (s *DigestService) Today(ctx context.Context, owner string, now time.Time) (string, error) {
	loc, err := s.svc.Timezone(ctx, owner)
	if err != nil {
		return "", err
	}
	local := now.In(loc)

	reminders, err := s.svc.ListActive(ctx, owner, Filter{})
	if err != nil {
		return "", err
	}

	var today []model.Reminder
	for _, reminder := range reminders {
		due := reminder.DueAt.In(loc)
		if due.Year() == local.Year() && due.YearDay() == local.YearDay() {
			today = append(today, reminder)
		}
	}
	sortByDue(today)

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📅 <b>Today</b> · %s\n\n", local.Format("Mon, Jan 2")))
	if len(today) == 0 {
		builder.WriteString("— nothing due today")
	} else {
		for _, reminder := range today {
			builder.WriteString(formatReminderLine(reminder, local, loc))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

func sortByDue(reminders []model.Reminder) {
	sort.SliceStable(reminders, func(i, j int) bool {
		return reminders[i].DueAt.Before(reminders[j].DueAt)
	})
}

func formatReminderLine(reminder model.Reminder, now time.Time, loc *time.Location) string {
	var sb strings.Builder

	due := reminder.DueAt.In(loc)
	icon := iconDefault
	switch {
	case reminder.Recurrence != model.RecurNone:
		icon = iconRecurring
	case now.After(due):
		icon = iconOverdue
	case due.Sub(now) <= time.Hour:
		icon = iconDueSoon
	}

	pri := priorityIcons[reminder.Priority]
	sb.WriteString(fmt.Sprintf("%s %s %s", icon, pri, html.EscapeString(strings.TrimSpace(reminder.Text))))

	if cat, ok := categoryIcons[reminder.Category]; ok && reminder.Category != model.DefaultCategory {
		sb.WriteString(fmt.Sprintf(" <i>(%s %s)</i>", cat, html.EscapeString(reminder.Category)))
	}

	sb.WriteString(fmt.Sprintf("\n   ⏰ %s", due.Format("3:04 PM, Jan 2")))
	if reminder.Recurrence != model.RecurNone {
		sb.WriteString(fmt.Sprintf(" · repeats %s", reminder.Recurrence))
	}
	if reminder.Notes != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(reminder.Notes))))
	}

	sb.WriteByte('\n')
	return sb.String()
}
