package events

import (
	"encoding/json"
	"testing"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(EventActionEnqueued, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	payload := ActionEventPayload{ActionID: "a-1", ActionType: "createTodo", Status: "pending"}
	if err := bus.PublishJSON(EventActionEnqueued, payload); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if received.Type != EventActionEnqueued {
		t.Errorf("expected type %s, got %s", EventActionEnqueued, received.Type)
	}

	var decoded ActionEventPayload
	if err := json.Unmarshal(received.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.ActionID != "a-1" || decoded.ActionType != "createTodo" {
		t.Errorf("unexpected payload: %+v", decoded)
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe(EventSyncFinished, func(_ *Event) error { count1++; return nil })
	bus.Subscribe(EventSyncFinished, func(_ *Event) error { count2++; return nil })

	if err := bus.PublishJSON(EventSyncFinished, SyncEventPayload{Synced: 2}); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both subscribers called once, got %d and %d", count1, count2)
	}
}

func TestEventBusUnrelatedType(t *testing.T) {
	bus := NewEventBus()
	var called bool

	bus.Subscribe(EventSyncPaused, func(_ *Event) error { called = true; return nil })

	if err := bus.PublishJSON(EventSyncStarted, SyncEventPayload{}); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}
	if called {
		t.Error("subscriber must not receive other event types")
	}
}

func TestNilBusPublishJSON(t *testing.T) {
	var bus *EventBus
	if err := bus.PublishJSON(EventSyncStarted, nil); err != nil {
		t.Errorf("nil bus PublishJSON must be a no-op, got %v", err)
	}
}

func TestNewJSONEvent(t *testing.T) {
	event, err := NewJSONEvent(EventNetworkOnline, map[string]bool{"online": true})
	if err != nil {
		t.Fatalf("NewJSONEvent failed: %v", err)
	}
	if event.Type != EventNetworkOnline {
		t.Errorf("unexpected type %s", event.Type)
	}
	if event.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}
