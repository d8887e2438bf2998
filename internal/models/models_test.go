package models

import (
	"encoding/json"
	"testing"
)

func TestQueuedActionErrorText(t *testing.T) {
	var action QueuedAction
	if got := action.ErrorText(); got != "" {
		t.Errorf("expected empty error text, got %q", got)
	}

	msg := "409 Conflict"
	action.LastError = &msg
	if got := action.ErrorText(); got != "409 Conflict" {
		t.Errorf("expected recorded error, got %q", got)
	}
}

func TestEngineStatusJSONOmitsEmpty(t *testing.T) {
	status := EngineStatus{State: SyncIdle, Online: true}

	raw, err := json.Marshal(status)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if _, ok := decoded["pause_reason"]; ok {
		t.Error("pause_reason must be omitted when empty")
	}
	if _, ok := decoded["last_result"]; ok {
		t.Error("last_result must be omitted when nil")
	}
	if decoded["state"] != SyncIdle {
		t.Errorf("unexpected state %v", decoded["state"])
	}
}
