package model

import "time"

// Recurrence names how a reminder repeats after it fires.
type Recurrence string

const (
	RecurNone    Recurrence = ""
	RecurDaily   Recurrence = "daily"
	RecurWeekly  Recurrence = "weekly"
	RecurMonthly Recurrence = "monthly"
	RecurWeekday Recurrence = "weekday"
)

// Reminder statuses. Deletion removes the row instead of transitioning.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Priority levels accepted from the !tag.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// DefaultCategory is used when no #tag is present or the tag is unknown.
const DefaultCategory = "other"

// Categories is the closed set of #tags the extractor accepts.
var Categories = map[string]bool{
	"work": true, "personal": true, "health": true,
	"shopping": true, "fitness": true, "family": true,
	"finance": true, "education": true, "other": true,
}

// Reminder is the unit of schedulable work. DueAt is always the next
// unfired occurrence, stored in UTC; the owner's timezone only matters
// when parsing input and rendering output.
type Reminder struct {
	ID         string    `gorm:"primaryKey"`
	Owner      string    `gorm:"index"`
	Text       string
	DueAt      time.Time `gorm:"index"`
	Category   string
	Priority   string
	Notes      string
	Recurrence Recurrence
	SharedWith []string `gorm:"serializer:json"`
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// VisibleTo reports whether the reminder belongs to or is shared with owner.
func (r *Reminder) VisibleTo(owner string) bool {
	if r.Owner == owner {
		return true
	}
	for _, s := range r.SharedWith {
		if s == owner {
			return true
		}
	}
	return false
}
