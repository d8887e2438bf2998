package models

// Action lifecycle statuses.
const (
	ActionPending  = "pending"
	ActionInFlight = "in_flight"
	ActionFailed   = "failed"
	ActionSynced   = "synced"
)

// Sync driver states.
const (
	SyncIdle    = "idle"
	SyncSyncing = "syncing"
	SyncPaused  = "paused"
)

// Reasons for the paused state.
const (
	PauseReasonAuth    = "auth"
	PauseReasonFailure = "failure"
)

// Failure policies for a replay batch.
const (
	PolicyStopOnFailure   = "stop"
	PolicySkipAndContinue = "skip"
)

const (
	// DefaultProbeIntervalSeconds is how often the detector re-checks
	// connectivity; platform hints alone are unreliable.
	DefaultProbeIntervalSeconds = 1

	// DefaultBatchSize bounds how many pending actions a single store read
	// pulls during replay.
	DefaultBatchSize = 50

	// DefaultMaxAttempts caps per-action replay attempts before the action
	// stays failed until a manual retry.
	DefaultMaxAttempts = 5

	// DefaultRedisTTL время жизни снапшота статуса в Redis (секунды).
	DefaultRedisTTL = 24 * 60 * 60

	// DefaultRemoteTimeoutSeconds bounds each handler's network round trip.
	DefaultRemoteTimeoutSeconds = 15
)
