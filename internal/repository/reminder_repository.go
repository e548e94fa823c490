package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"memoryping/internal/model"
)

// ReminderRepository handles CRUD for reminders. A single mutex
// serializes every read-modify-write on the collection; profiles and
// counters are separate lock domains and are never held together.
type ReminderRepository struct {
	mu sync.Mutex
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *model.Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.db.WithContext(ctx).Create(reminder).Error; err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

func (r *ReminderRepository) FindByID(ctx context.Context, id string) (*model.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var reminder model.Reminder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&reminder).Error; err != nil {
		return nil, err
	}
	return &reminder, nil
}

// UpdateDueAt replaces the due instant, used by the recurrence advance.
func (r *ReminderRepository) UpdateDueAt(ctx context.Context, id string, due time.Time) (*model.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	db := r.db.WithContext(ctx)
	var reminder model.Reminder
	if err := db.Where("id = ?", id).First(&reminder).Error; err != nil {
		return nil, err
	}
	reminder.DueAt = due
	if err := db.Save(&reminder).Error; err != nil {
		return nil, fmt.Errorf("update due: %w", err)
	}
	return &reminder, nil
}

// Postpone shifts the due instant by delta, used by snooze.
func (r *ReminderRepository) Postpone(ctx context.Context, id string, delta time.Duration) (*model.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	db := r.db.WithContext(ctx)
	var reminder model.Reminder
	if err := db.Where("id = ?", id).First(&reminder).Error; err != nil {
		return nil, err
	}
	reminder.DueAt = reminder.DueAt.Add(delta)
	if err := db.Save(&reminder).Error; err != nil {
		return nil, fmt.Errorf("postpone reminder: %w", err)
	}
	return &reminder, nil
}

// Delete removes a reminder. It reports whether a row actually existed,
// so callers can distinguish purge from no-op without a prior read.
func (r *ReminderRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Reminder{})
	if res.Error != nil {
		return false, fmt.Errorf("delete reminder: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListPending returns pending reminders owned by or shared with owner,
// soonest first. SharedWith is stored as a JSON array, so a quoted
// LIKE match finds shared entries.
func (r *ReminderRepository) ListPending(ctx context.Context, owner string) ([]model.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var reminders []model.Reminder
	if err := r.db.WithContext(ctx).
		Where("status = ? AND (owner = ? OR shared_with LIKE ?)", model.StatusPending, owner, `%"`+owner+`"%`).
		Order("due_at ASC").
		Find(&reminders).Error; err != nil {
		return nil, err
	}
	return reminders, nil
}

// ListAll returns every stored reminder, used once at startup.
func (r *ReminderRepository) ListAll(ctx context.Context) ([]model.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var reminders []model.Reminder
	if err := r.db.WithContext(ctx).Order("due_at ASC").Find(&reminders).Error; err != nil {
		return nil, err
	}
	return reminders, nil
}
