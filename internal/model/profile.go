package model

import "time"

// UserProfile stores per-owner settings. Preferences is an opaque bag
// for the front end; the core never interprets it.
type UserProfile struct {
	Owner       string `gorm:"primaryKey"`
	Timezone    string
	Preferences map[string]string `gorm:"serializer:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CounterKind names a Counters field for increment events.
type CounterKind string

const (
	CounterCreated   CounterKind = "created"
	CounterCompleted CounterKind = "completed"
	CounterSnoozed   CounterKind = "snoozed"
)

// Counters aggregates per-owner activity for the external scoring
// layer. The core increments, never reads back.
type Counters struct {
	Owner     string `gorm:"primaryKey"`
	Created   int
	Completed int
	Snoozed   int
	UpdatedAt time.Time
}
