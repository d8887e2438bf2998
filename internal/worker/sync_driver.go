package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"driftq/internal/domain"
	"driftq/internal/events"
	"driftq/internal/metrics"
	"driftq/internal/models"

	"github.com/rs/zerolog"
)

// ErrNotAuthenticated pauses the whole batch before any handler runs;
// replaying against a backend that rejects everything helps nobody.
var ErrNotAuthenticated = errors.New("remote session is not authenticated")

// SyncDriver drains the persistent queue in FIFO order when connectivity
// returns. Replay is strictly sequential: one handler call completes,
// including its network round trip, before the next begins. That is what makes
// the ordering and stop-on-failure guarantees hold without extra locking.
type SyncDriver struct {
	store         domain.QueueStore
	registry      domain.Registry
	auth          domain.AuthChecker
	network       domain.NetworkMonitor
	bus           domain.EventPublisher
	statusRepo    domain.StatusRepository
	retryPolicy   RetryPolicy
	failurePolicy string
	batchSize     int
	logger        *zerolog.Logger

	trigger chan struct{}

	runMu sync.Mutex // serializes replay batches

	stateMu     sync.RWMutex
	state       string
	pauseReason string
	lastResult  *models.SyncResult
}

// NewSyncDriver builds a driver with sane defaults.
func NewSyncDriver(
	store domain.QueueStore,
	registry domain.Registry,
	auth domain.AuthChecker,
	network domain.NetworkMonitor,
	bus domain.EventPublisher,
	statusRepo domain.StatusRepository,
	retry RetryPolicy,
	failurePolicy string,
	batchSize int,
	logger *zerolog.Logger,
) *SyncDriver {
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = models.DefaultMaxAttempts
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if failurePolicy == "" {
		failurePolicy = models.PolicyStopOnFailure
	}
	if batchSize <= 0 {
		batchSize = models.DefaultBatchSize
	}

	return &SyncDriver{
		store:         store,
		registry:      registry,
		auth:          auth,
		network:       network,
		bus:           bus,
		statusRepo:    statusRepo,
		retryPolicy:   retry,
		failurePolicy: failurePolicy,
		batchSize:     batchSize,
		logger:        logger,
		trigger:       make(chan struct{}, 1),
		state:         models.SyncIdle,
	}
}

// Start reacts to offline→online transitions and manual triggers until ctx is
// done.
func (d *SyncDriver) Start(ctx context.Context) {
	d.logger.Info().Str("failure_policy", d.failurePolicy).Msg("Sync driver started")
	defer d.logger.Info().Msg("Sync driver stopped")

	transitions := d.network.Subscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case online := <-transitions:
			metrics.IncNetworkTransition(online)
			if online {
				d.runSync(ctx)
			}
		case <-d.trigger:
			d.runSync(ctx)
		}
	}
}

// TriggerSync requests a replay batch without blocking. Triggers arriving
// while a batch is running are coalesced into at most one follow-up run.
func (d *SyncDriver) TriggerSync() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// Sync runs one replay batch synchronously; used by the control API. A manual
// sync re-attempts failed actions immediately instead of waiting out their
// backoff window.
func (d *SyncDriver) Sync(ctx context.Context) error {
	return d.sync(ctx, true)
}

// State returns the current driver state and pause reason.
func (d *SyncDriver) State() (string, string) {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	return d.state, d.pauseReason
}

// LastResult returns the outcome of the most recent replay batch.
func (d *SyncDriver) LastResult() *models.SyncResult {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	if d.lastResult == nil {
		return nil
	}
	result := *d.lastResult
	return &result
}

func (d *SyncDriver) runSync(ctx context.Context) error {
	return d.sync(ctx, false)
}

func (d *SyncDriver) sync(ctx context.Context, manual bool) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.setState(models.SyncSyncing, "")
	_ = d.bus.PublishJSON(events.EventSyncStarted, events.SyncEventPayload{State: models.SyncSyncing})

	// Auth gate before touching the queue.
	if err := d.auth.CheckAuth(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("Auth check failed, sync paused")
		d.pause(ctx, models.PauseReasonAuth, nil)
		metrics.IncSyncRun("paused_auth")
		return ErrNotAuthenticated
	}

	result := &models.SyncResult{StartedAt: time.Now()}

	// Resurrect failed actions so the batch re-attempts from the first
	// failure, in the original FIFO position.
	if err := d.resurrectFailed(ctx, manual); err != nil {
		d.logger.Error().Err(err).Msg("Failed to resurrect failed actions")
	}

	halted := d.drain(ctx, result)

	result.FinishedAt = time.Now()
	if remaining, err := d.countRemaining(ctx); err == nil {
		result.Remaining = remaining
	}

	if halted {
		d.pause(ctx, models.PauseReasonFailure, result)
		metrics.IncSyncRun("paused_failure")
		return nil
	}

	d.finish(ctx, result)
	metrics.IncSyncRun("completed")
	return nil
}

// drain replays pending actions in FIFO order. Returns true when the batch
// halted on a failure under the stop-on-failure policy. An action that is
// still failed (attempt budget exhausted, backoff pending) blocks everything
// queued after it under that policy.
func (d *SyncDriver) drain(ctx context.Context, result *models.SyncResult) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		blockSeq, blocked, err := d.failureBarrier(ctx)
		if err != nil {
			d.logger.Error().Err(err).Msg("Failed to inspect failed actions")
			return false
		}

		actions, err := d.store.ListPendingActions(ctx, d.batchSize)
		if err != nil {
			d.logger.Error().Err(err).Msg("Failed to list pending actions")
			return false
		}
		if len(actions) == 0 {
			return blocked
		}

		for i := range actions {
			if blocked && actions[i].Seq > blockSeq {
				return true
			}
			if halted := d.processAction(ctx, &actions[i], result); halted {
				return true
			}
		}
	}
}

// failureBarrier returns the lowest sequence number among still-failed actions
// when the stop-on-failure policy is active.
func (d *SyncDriver) failureBarrier(ctx context.Context) (int64, bool, error) {
	if d.failurePolicy != models.PolicyStopOnFailure {
		return 0, false, nil
	}
	failed, err := d.store.ListFailedActions(ctx)
	if err != nil {
		return 0, false, err
	}
	if len(failed) == 0 {
		return 0, false, nil
	}
	return failed[0].Seq, true, nil
}

func (d *SyncDriver) processAction(ctx context.Context, action *models.QueuedAction, result *models.SyncResult) bool {
	if err := d.store.UpdateActionStatus(ctx, action.ID, models.ActionInFlight, ""); err != nil {
		d.logger.Error().Err(err).Str("action_id", action.ID).Msg("Failed to mark action in flight")
		return d.failurePolicy == models.PolicyStopOnFailure
	}

	handler, err := d.registry.Handler(action.ActionType)
	if err == nil {
		err = handler(ctx, action.Payload)
	}

	if err != nil {
		d.recordFailure(ctx, action, err, result)
		return d.failurePolicy == models.PolicyStopOnFailure
	}

	// Synced actions leave the durable store; the queue only holds work that
	// is still owed to the backend.
	if err := d.store.RemoveAction(ctx, action.ID); err != nil {
		d.logger.Error().Err(err).Str("action_id", action.ID).Msg("Failed to remove synced action")
	}

	result.Synced++
	metrics.IncSynced(action.ActionType)
	_ = d.bus.PublishJSON(events.EventActionSynced, events.ActionEventPayload{
		ActionID:   action.ID,
		ActionType: action.ActionType,
		Status:     models.ActionSynced,
		Attempts:   action.Attempts + 1,
	})
	return false
}

func (d *SyncDriver) recordFailure(ctx context.Context, action *models.QueuedAction, cause error, result *models.SyncResult) {
	if err := d.store.UpdateActionStatus(ctx, action.ID, models.ActionFailed, cause.Error()); err != nil {
		d.logger.Error().Err(err).Str("action_id", action.ID).Msg("Failed to mark action failed")
	}

	result.Failed++
	if result.FailedActionID == "" {
		result.FailedActionID = action.ID
		result.FailedActionType = action.ActionType
		result.LastError = cause.Error()
	}

	metrics.IncFailed(action.ActionType)
	_ = d.bus.PublishJSON(events.EventActionFailed, events.ActionEventPayload{
		ActionID:   action.ID,
		ActionType: action.ActionType,
		Status:     models.ActionFailed,
		Attempts:   action.Attempts + 1,
		LastError:  cause.Error(),
	})
	d.logger.Warn().
		Str("action_id", action.ID).
		Str("action_type", action.ActionType).
		Err(cause).
		Msg("Action replay failed")
}

// resurrectFailed moves failed actions back to pending when their attempt
// budget allows, so the next drain re-attempts them in FIFO order. Automatic
// runs also wait out the backoff window; manual ones do not. Exhausted
// actions stay failed until an explicit per-action retry.
func (d *SyncDriver) resurrectFailed(ctx context.Context, manual bool) error {
	failed, err := d.store.ListFailedActions(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for i := range failed {
		action := &failed[i]
		if action.Attempts >= d.retryPolicy.MaxAttempts {
			continue
		}
		if !manual && now.Before(action.UpdatedAt.Add(d.retryPolicy.NextDelay(action.Attempts))) {
			continue
		}
		if err := d.store.UpdateActionStatus(ctx, action.ID, models.ActionPending, ""); err != nil {
			return err
		}
	}
	return nil
}

// countRemaining counts actions still eligible for a future batch; failed
// actions are reported separately through FailedCount.
func (d *SyncDriver) countRemaining(ctx context.Context) (int, error) {
	counts, err := d.store.CountActionsByStatus(ctx)
	if err != nil {
		return 0, err
	}
	return counts[models.ActionPending] + counts[models.ActionInFlight], nil
}

func (d *SyncDriver) pause(ctx context.Context, reason string, result *models.SyncResult) {
	d.setState(models.SyncPaused, reason)

	payload := events.SyncEventPayload{State: models.SyncPaused, PauseReason: reason}
	if result != nil {
		d.setLastResult(result)
		payload.Synced = result.Synced
		payload.Failed = result.Failed
		payload.Remaining = result.Remaining
		payload.FailedActionID = result.FailedActionID
		payload.FailedActionType = result.FailedActionType
		payload.LastError = result.LastError
	}
	_ = d.bus.PublishJSON(events.EventSyncPaused, payload)

	d.persistStatus(ctx)
}

func (d *SyncDriver) finish(ctx context.Context, result *models.SyncResult) {
	d.setState(models.SyncIdle, "")
	d.setLastResult(result)

	_ = d.bus.PublishJSON(events.EventSyncFinished, events.SyncEventPayload{
		State:     models.SyncIdle,
		Synced:    result.Synced,
		Failed:    result.Failed,
		Remaining: result.Remaining,
	})
	d.logger.Info().
		Int("synced", result.Synced).
		Int("failed", result.Failed).
		Int("remaining", result.Remaining).
		Msg("Sync batch finished")

	d.persistStatus(ctx)
}

func (d *SyncDriver) setState(state, reason string) {
	d.stateMu.Lock()
	d.state = state
	d.pauseReason = reason
	d.stateMu.Unlock()
}

func (d *SyncDriver) setLastResult(result *models.SyncResult) {
	d.stateMu.Lock()
	copied := *result
	d.lastResult = &copied
	d.stateMu.Unlock()
}

// persistStatus snapshots the engine status so status readers outside this
// process see the same picture the driver does.
func (d *SyncDriver) persistStatus(ctx context.Context) {
	if d.statusRepo == nil {
		return
	}

	status := d.BuildStatus(ctx)
	if err := d.statusRepo.SetStatus(ctx, status); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to persist engine status")
	}
}

// BuildStatus assembles the current engine snapshot.
func (d *SyncDriver) BuildStatus(ctx context.Context) *models.EngineStatus {
	state, reason := d.State()
	status := &models.EngineStatus{
		State:       state,
		PauseReason: reason,
		Online:      d.network.Online(),
		LastResult:  d.LastResult(),
		UpdatedAt:   time.Now(),
	}

	if counts, err := d.store.CountActionsByStatus(ctx); err == nil {
		status.QueueDepth = counts[models.ActionPending] + counts[models.ActionInFlight]
		status.FailedCount = counts[models.ActionFailed]
		metrics.SetQueueDepth(status.QueueDepth)
	}

	return status
}
