package repository

import (
	"context"
	"sync/atomic"
	"time"

	"driftq/internal/domain"
	"driftq/internal/models"

	"github.com/rs/zerolog"
)

// FailoverStatusRepository writes through to Redis while it is healthy and
// falls back to the in-memory repository when it is not. Status display must
// keep working when Redis is down; the queue itself never depends on it.
type FailoverStatusRepository struct {
	primary   domain.StatusRepository
	fallback  domain.StatusRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverStatusRepository(primary, fallback domain.StatusRepository, logger *zerolog.Logger) *FailoverStatusRepository {
	return &FailoverStatusRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverStatusRepository) GetStatus(ctx context.Context) (*models.EngineStatus, error) {
	if !r.isDown.Load() {
		status, err := r.primary.GetStatus(ctx)
		if err == nil {
			return status, nil
		}
		r.logger.Error().Err(err).Msg("Primary status repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		status, err := r.primary.GetStatus(ctx)
		if err == nil {
			r.isDown.Store(false)
			return status, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetStatus(ctx)
}

func (r *FailoverStatusRepository) SetStatus(ctx context.Context, status *models.EngineStatus) error {
	// The fallback always receives the write so a later failover still has
	// the latest snapshot.
	if err := r.fallback.SetStatus(ctx, status); err != nil {
		return err
	}

	if !r.isDown.Load() {
		err := r.primary.SetStatus(ctx, status)
		if err == nil {
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary status repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return nil
}

func (r *FailoverStatusRepository) ClearStatus(ctx context.Context) error {
	if err := r.fallback.ClearStatus(ctx); err != nil {
		return err
	}

	if !r.isDown.Load() {
		err := r.primary.ClearStatus(ctx)
		if err == nil {
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary status repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return nil
}
