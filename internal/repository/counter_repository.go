package repository

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"memoryping/internal/model"
)

// CounterRepository keeps per-owner aggregates for the external
// scoring layer. Its lock domain is independent of the other
// collections.
type CounterRepository struct {
	mu sync.Mutex
	db *gorm.DB
}

func NewCounterRepository(db *gorm.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

// Increment bumps one counter and returns the new totals.
func (r *CounterRepository) Increment(ctx context.Context, owner string, kind model.CounterKind) (model.Counters, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	db := r.db.WithContext(ctx)
	var counters model.Counters
	err := db.Where("owner = ?", owner).First(&counters).Error
	switch {
	case err == nil:
	case err == gorm.ErrRecordNotFound:
		counters = model.Counters{Owner: owner}
	default:
		return model.Counters{}, fmt.Errorf("find counters: %w", err)
	}

	switch kind {
	case model.CounterCreated:
		counters.Created++
	case model.CounterCompleted:
		counters.Completed++
	case model.CounterSnoozed:
		counters.Snoozed++
	default:
		return model.Counters{}, fmt.Errorf("unknown counter kind %q", kind)
	}

	if err := db.Save(&counters).Error; err != nil {
		return model.Counters{}, fmt.Errorf("save counters: %w", err)
	}
	return counters, nil
}

// Get returns the totals for owner, zeroes when nothing was recorded.
func (r *CounterRepository) Get(ctx context.Context, owner string) (model.Counters, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var counters model.Counters
	err := r.db.WithContext(ctx).Where("owner = ?", owner).First(&counters).Error
	switch {
	case err == nil:
		return counters, nil
	case err == gorm.ErrRecordNotFound:
		return model.Counters{Owner: owner}, nil
	default:
		return model.Counters{}, fmt.Errorf("find counters: %w", err)
	}
}
