package models

import "time"

// SyncResult is the aggregate outcome of one replay batch. It carries enough
// detail about the failing action for the UI to render a specific message
// instead of a bare "sync failed".
type SyncResult struct {
	Synced           int       `json:"synced"`
	Failed           int       `json:"failed"`
	Remaining        int       `json:"remaining"`
	FailedActionID   string    `json:"failed_action_id,omitempty"`
	FailedActionType string    `json:"failed_action_type,omitempty"`
	LastError        string    `json:"last_error,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// EngineStatus is the snapshot the UI layer reads; it never mutates queue
// entries through it.
type EngineStatus struct {
	State       string      `json:"state"`
	PauseReason string      `json:"pause_reason,omitempty"`
	Online      bool        `json:"online"`
	QueueDepth  int         `json:"queue_depth"`
	FailedCount int         `json:"failed_count"`
	LastResult  *SyncResult `json:"last_result,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
