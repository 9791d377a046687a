package memory

import (
	"context"
	"sync"

	collection "meter-collector/internal/collection/domain"
)

// ScheduleRepository keeps the active schedule in memory.
type ScheduleRepository struct {
	mu        sync.Mutex
	active    *collection.ScheduleConfig
	createdBy string
}

// NewScheduleRepository constructs an empty repository.
func NewScheduleRepository() *ScheduleRepository {
	return &ScheduleRepository{}
}

// Activate replaces the active schedule.
func (r *ScheduleRepository) Activate(ctx context.Context, cfg collection.ScheduleConfig, createdBy string) error {
	_ = ctx
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = &cfg
	r.createdBy = createdBy
	return nil
}

// Deactivate clears the active schedule.
func (r *ScheduleRepository) Deactivate(ctx context.Context) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = nil
	r.createdBy = ""
	return nil
}

// LoadActive returns a copy of the active schedule, or nil.
func (r *ScheduleRepository) LoadActive(ctx context.Context) (*collection.ScheduleConfig, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil, nil
	}
	cfg := *r.active
	return &cfg, nil
}
