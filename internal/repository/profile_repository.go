package repository

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"memoryping/internal/model"
)

// ProfileRepository manages per-owner profiles. Profiles are created
// lazily on first access with the configured default timezone.
type ProfileRepository struct {
	mu        sync.Mutex
	db        *gorm.DB
	defaultTZ string
}

func NewProfileRepository(db *gorm.DB, defaultTZ string) *ProfileRepository {
	return &ProfileRepository{db: db, defaultTZ: defaultTZ}
}

func (r *ProfileRepository) GetOrCreate(ctx context.Context, owner string) (*model.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(ctx, owner)
}

func (r *ProfileRepository) getOrCreateLocked(ctx context.Context, owner string) (*model.UserProfile, error) {
	var profile model.UserProfile
	db := r.db.WithContext(ctx)
	err := db.Where("owner = ?", owner).First(&profile).Error
	switch {
	case err == nil:
		return &profile, nil
	case err == gorm.ErrRecordNotFound:
		profile = model.UserProfile{Owner: owner, Timezone: r.defaultTZ}
		if err := db.Create(&profile).Error; err != nil {
			return nil, fmt.Errorf("create profile: %w", err)
		}
		return &profile, nil
	default:
		return nil, fmt.Errorf("find profile: %w", err)
	}
}

func (r *ProfileRepository) SetTimezone(ctx context.Context, owner, zone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	profile, err := r.getOrCreateLocked(ctx, owner)
	if err != nil {
		return err
	}
	profile.Timezone = zone
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return fmt.Errorf("set timezone: %w", err)
	}
	return nil
}

// ListAll returns every known profile, used for broadcast jobs.
func (r *ProfileRepository) ListAll(ctx context.Context) ([]model.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var profiles []model.UserProfile
	if err := r.db.WithContext(ctx).Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// SetPreference stores an opaque front-end preference on the profile.
func (r *ProfileRepository) SetPreference(ctx context.Context, owner, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	profile, err := r.getOrCreateLocked(ctx, owner)
	if err != nil {
		return err
	}
	if profile.Preferences == nil {
		profile.Preferences = make(map[string]string)
	}
	profile.Preferences[key] = value
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return fmt.Errorf("set preference: %w", err)
	}
	return nil
}
