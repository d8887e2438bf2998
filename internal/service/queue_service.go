package service

import (
	"context"
	"fmt"

	"driftq/internal/domain"
	"driftq/internal/export"
	"driftq/internal/models"

	"github.com/rs/zerolog"
)

// Syncer is the slice of the driver the service needs.
type Syncer interface {
	Sync(ctx context.Context) error
	TriggerSync()
	BuildStatus(ctx context.Context) *models.EngineStatus
}

// QueueService backs the control API. It is the only writer besides the
// driver; UI surfaces read snapshots and mutate through it, never through the
// store directly.
type QueueService struct {
	store  domain.QueueStore
	syncer Syncer
	logger *zerolog.Logger
}

func NewQueueService(store domain.QueueStore, syncer Syncer, logger *zerolog.Logger) *QueueService {
	return &QueueService{
		store:  store,
		syncer: syncer,
		logger: logger,
	}
}

// Snapshot returns the live engine status.
func (s *QueueService) Snapshot(ctx context.Context) (*models.EngineStatus, error) {
	return s.syncer.BuildStatus(ctx), nil
}

func (s *QueueService) ListQueue(ctx context.Context) ([]models.QueuedAction, error) {
	return s.store.ListActions(ctx)
}

func (s *QueueService) ListFailed(ctx context.Context) ([]models.QueuedAction, error) {
	return s.store.ListFailedActions(ctx)
}

// RetryAction resets a failed action to pending and schedules a sync. The
// reset ignores the attempt budget: an explicit user retry always gets one
// more shot.
func (s *QueueService) RetryAction(ctx context.Context, id string) error {
	action, err := s.store.GetAction(ctx, id)
	if err != nil {
		return err
	}
	if action.Status != models.ActionFailed {
		return fmt.Errorf("action %s is %s, only failed actions can be retried", id, action.Status)
	}

	if err := s.store.UpdateActionStatus(ctx, id, models.ActionPending, ""); err != nil {
		return err
	}

	s.logger.Info().Str("action_id", id).Str("action_type", action.ActionType).Msg("Manual retry requested")
	s.syncer.TriggerSync()
	return nil
}

// RemoveAction clears one action from the queue, typically a failed one the
// user gave up on.
func (s *QueueService) RemoveAction(ctx context.Context, id string) error {
	if err := s.store.RemoveAction(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("action_id", id).Msg("Action removed from queue")
	return nil
}

func (s *QueueService) ClearFailed(ctx context.Context) (int64, error) {
	cleared, err := s.store.ClearFailedActions(ctx)
	if err != nil {
		return 0, err
	}
	if cleared > 0 {
		s.logger.Info().Int64("cleared", cleared).Msg("Failed actions cleared")
	}
	return cleared, nil
}

// TriggerSync runs a replay batch now; the caller gets the driver's verdict.
func (s *QueueService) TriggerSync(ctx context.Context) error {
	return s.syncer.Sync(ctx)
}

// ExportQueue dumps the current queue to an .xlsx file and returns its path.
func (s *QueueService) ExportQueue(ctx context.Context, dir string) (string, error) {
	actions, err := s.store.ListActions(ctx)
	if err != nil {
		return "", err
	}
	return export.QueueReport(dir, actions)
}
