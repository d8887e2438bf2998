package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"driftq/internal/domain"
	"driftq/internal/events"
	"driftq/internal/metrics"
	"driftq/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Outcome tells the call site what happened to its mutation: executed against
// the remote API right away, or durably queued for later replay.
type Outcome struct {
	Executed bool
	Queued   bool
	Action   *models.QueuedAction
}

// Dispatcher is the single entry point for mutating call sites. Every
// create/update/delete in the application goes through ExecuteOrQueue; the UI
// layer never touches the store directly.
type Dispatcher struct {
	registry *Registry
	store    domain.QueueStore
	network  domain.NetworkMonitor
	bus      domain.EventPublisher
	logger   *zerolog.Logger
}

func NewDispatcher(registry *Registry, store domain.QueueStore, network domain.NetworkMonitor, bus domain.EventPublisher, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		store:    store,
		network:  network,
		bus:      bus,
		logger:   logger,
	}
}

// ExecuteOrQueue runs the handler immediately when the detector reports
// online, otherwise enqueues the action. An unregistered action type fails
// loudly in both paths. A store write failure is fatal to this call: an
// offline mutation that cannot be queued must not silently disappear.
func (d *Dispatcher) ExecuteOrQueue(ctx context.Context, actionType string, payload json.RawMessage) (*Outcome, error) {
	handler, err := d.registry.Handler(actionType)
	if err != nil {
		return nil, err
	}

	if d.network.Online() {
		if err := handler(ctx, payload); err != nil {
			return nil, fmt.Errorf("execute %s: %w", actionType, err)
		}
		return &Outcome{Executed: true}, nil
	}

	action := &models.QueuedAction{
		ID:         uuid.NewString(),
		ActionType: actionType,
		Payload:    payload,
		Status:     models.ActionPending,
		EnqueuedAt: time.Now(),
	}
	if err := d.store.EnqueueAction(ctx, action); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", actionType, err)
	}

	metrics.IncEnqueued(actionType)
	if d.bus != nil {
		_ = d.bus.PublishJSON(events.EventActionEnqueued, events.ActionEventPayload{
			ActionID:   action.ID,
			ActionType: action.ActionType,
			Status:     action.Status,
		})
	}
	d.logger.Debug().Str("action_id", action.ID).Str("action_type", actionType).Msg("Action queued for later sync")

	return &Outcome{Queued: true, Action: action}, nil
}
