package repository

import (
	"context"
	"sync"
	"time"

	"driftq/internal/models"
)

// MemoryStatusRepository keeps the engine snapshot in process memory. It is
// the fallback when Redis is absent or down.
type MemoryStatusRepository struct {
	mu        sync.RWMutex
	status    *models.EngineStatus
	updatedAt time.Time
	ttl       time.Duration
}

func NewMemoryStatusRepository(ttl time.Duration) *MemoryStatusRepository {
	return &MemoryStatusRepository{
		ttl: ttl,
	}
}

func (r *MemoryStatusRepository) GetStatus(ctx context.Context) (*models.EngineStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.status == nil {
		return nil, nil
	}
	if r.ttl > 0 && time.Since(r.updatedAt) > r.ttl {
		return nil, nil
	}
	status := *r.status
	return &status, nil
}

func (r *MemoryStatusRepository) SetStatus(ctx context.Context, status *models.EngineStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *status
	r.status = &copied
	r.updatedAt = time.Now()
	return nil
}

func (r *MemoryStatusRepository) ClearStatus(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = nil
	return nil
}
