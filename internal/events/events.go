package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventActionEnqueued = "action_enqueued"
	EventActionSynced   = "action_synced"
	EventActionFailed   = "action_failed"
	EventSyncStarted    = "sync_started"
	EventSyncFinished   = "sync_finished"
	EventSyncPaused     = "sync_paused"
	EventNetworkOnline  = "network_online"
	EventNetworkOffline = "network_offline"
)

// ActionEventPayload describes the minimal action snapshot for event consumers.
type ActionEventPayload struct {
	ActionID   string `json:"action_id"`
	ActionType string `json:"action_type"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	LastError  string `json:"last_error,omitempty"`
}

// SyncEventPayload carries the aggregate outcome of a replay batch. It has to
// name the failing action so the UI can say more than "sync failed".
type SyncEventPayload struct {
	State            string `json:"state"`
	PauseReason      string `json:"pause_reason,omitempty"`
	Synced           int    `json:"synced"`
	Failed           int    `json:"failed"`
	Remaining        int    `json:"remaining"`
	FailedActionID   string `json:"failed_action_id,omitempty"`
	FailedActionType string `json:"failed_action_type,omitempty"`
	LastError        string `json:"last_error,omitempty"`
}

// Event represents a lightweight engine event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for engine events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
