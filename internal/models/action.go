package models

import (
	"encoding/json"
	"time"
)

// QueuedAction represents one pending mutation captured while the remote
// backend was unreachable. Seq reflects insertion order and drives FIFO replay.
type QueuedAction struct {
	Seq        int64           `json:"seq"`
	ID         string          `json:"id"`
	ActionType string          `json:"action_type"`
	Payload    json.RawMessage `json:"payload"`
	Status     string          `json:"status"`
	Attempts   int             `json:"attempts"`
	LastError  *string         `json:"last_error,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ErrorText returns the recorded failure reason, or empty when none.
func (a *QueuedAction) ErrorText() string {
	if a.LastError == nil {
		return ""
	}
	return *a.LastError
}
