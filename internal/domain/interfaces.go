package domain

import (
	"context"
	"encoding/json"

	"driftq/internal/models"
)

// Handler performs one mutation kind against the remote API. The error it
// returns is recorded verbatim as the action's last_error.
type Handler func(ctx context.Context, payload json.RawMessage) error

// QueueStore is the durable queue. Enqueue must complete the write before
// returning; a store I/O failure is fatal to the triggering call.
type QueueStore interface {
	EnqueueAction(ctx context.Context, action *models.QueuedAction) error
	ListActions(ctx context.Context) ([]models.QueuedAction, error)
	ListPendingActions(ctx context.Context, limit int) ([]models.QueuedAction, error)
	ListFailedActions(ctx context.Context) ([]models.QueuedAction, error)
	GetAction(ctx context.Context, id string) (*models.QueuedAction, error)
	UpdateActionStatus(ctx context.Context, id string, status string, lastError string) error
	RemoveAction(ctx context.Context, id string) error
	RehydrateInFlight(ctx context.Context) (int64, error)
	CountActionsByStatus(ctx context.Context) (map[string]int, error)
	ClearFailedActions(ctx context.Context) (int64, error)
}

// StatusRepository keeps the latest engine snapshot for status readers.
type StatusRepository interface {
	GetStatus(ctx context.Context) (*models.EngineStatus, error)
	SetStatus(ctx context.Context, status *models.EngineStatus) error
	ClearStatus(ctx context.Context) error
}

// AuthChecker validates the session before a replay batch starts.
type AuthChecker interface {
	CheckAuth(ctx context.Context) error
}

// Prober performs one connectivity check against the remote backend.
type Prober interface {
	Probe(ctx context.Context) error
}

// NetworkMonitor exposes the current online signal and its transitions.
type NetworkMonitor interface {
	Online() bool
	SetHint(online bool)
	Subscribe() <-chan bool
}

// Registry maps action types to their executors.
type Registry interface {
	Register(actionType string, handler Handler)
	Handler(actionType string) (Handler, error)
}

// SyncTrigger requests a replay batch; used by the dispatch layer and the
// control API so neither depends on the driver type.
type SyncTrigger interface {
	TriggerSync()
}

// EventPublisher mirrors the in-process bus surface consumed by services.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// QueueService is the control surface the HTTP API exposes.
type QueueService interface {
	Snapshot(ctx context.Context) (*models.EngineStatus, error)
	ListQueue(ctx context.Context) ([]models.QueuedAction, error)
	ListFailed(ctx context.Context) ([]models.QueuedAction, error)
	RetryAction(ctx context.Context, id string) error
	RemoveAction(ctx context.Context, id string) error
	ClearFailed(ctx context.Context) (int64, error)
	TriggerSync(ctx context.Context) error
	ExportQueue(ctx context.Context, dir string) (string, error)
}
