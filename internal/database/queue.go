package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"driftq/internal/models"
)

var ErrActionNotFound = errors.New("queued action not found")

const actionColumns = `seq, id, action_type, payload, status, attempts, last_error, enqueued_at, updated_at`

// EnqueueAction appends an action with status pending. The row is durable
// before this returns; a write failure propagates to the caller so the
// triggering mutation is never silently dropped.
func (db *DB) EnqueueAction(ctx context.Context, action *models.QueuedAction) error {
	if action.Status == "" {
		action.Status = models.ActionPending
	}
	now := time.Now()
	if action.EnqueuedAt.IsZero() {
		action.EnqueuedAt = now
	}
	action.UpdatedAt = now

	query := `INSERT INTO actions (id, action_type, payload, status, attempts, last_error, enqueued_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.db.ExecContext(ctx, query,
		action.ID,
		action.ActionType,
		string(action.Payload),
		action.Status,
		action.Attempts,
		action.LastError,
		action.EnqueuedAt,
		action.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue action: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	action.Seq = seq

	return nil
}

// ListActions returns every stored action in enqueue order.
func (db *DB) ListActions(ctx context.Context) ([]models.QueuedAction, error) {
	query := `SELECT ` + actionColumns + ` FROM actions ORDER BY seq ASC`
	return db.queryActions(ctx, query)
}

// ListPendingActions returns replayable actions in FIFO order.
func (db *DB) ListPendingActions(ctx context.Context, limit int) ([]models.QueuedAction, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE status = ? ORDER BY seq ASC LIMIT ?`
	return db.queryActions(ctx, query, models.ActionPending, limit)
}

// ListFailedActions returns failed actions in FIFO order so a manual retry
// resumes from the first failure.
func (db *DB) ListFailedActions(ctx context.Context) ([]models.QueuedAction, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE status = ? ORDER BY seq ASC`
	return db.queryActions(ctx, query, models.ActionFailed)
}

func (db *DB) GetAction(ctx context.Context, id string) (*models.QueuedAction, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE id = ?`

	var a models.QueuedAction
	var payload string
	err := db.db.QueryRowContext(ctx, query, id).Scan(
		&a.Seq, &a.ID, &a.ActionType, &payload, &a.Status, &a.Attempts, &a.LastError, &a.EnqueuedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action: %w", err)
	}
	a.Payload = []byte(payload)
	return &a, nil
}

// UpdateActionStatus records a status transition. Moving into failed bumps the
// attempt counter; moving back to pending clears the recorded error.
func (db *DB) UpdateActionStatus(ctx context.Context, id string, status string, lastError string) error {
	var query string
	var args []interface{}
	now := time.Now()

	switch status {
	case models.ActionFailed:
		query = `UPDATE actions SET status = ?, last_error = ?, attempts = attempts + 1, updated_at = ? WHERE id = ?`
		args = []interface{}{status, lastError, now, id}
	case models.ActionPending:
		query = `UPDATE actions SET status = ?, last_error = NULL, updated_at = ? WHERE id = ?`
		args = []interface{}{status, now, id}
	default:
		query = `UPDATE actions SET status = ?, updated_at = ? WHERE id = ?`
		args = []interface{}{status, now, id}
	}

	result, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update action status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrActionNotFound
	}
	return nil
}

func (db *DB) RemoveAction(ctx context.Context, id string) error {
	result, err := db.db.ExecContext(ctx, `DELETE FROM actions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove action: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrActionNotFound
	}
	return nil
}

// RehydrateInFlight resets in_flight rows to pending. An in_flight status that
// survived a restart has no execution behind it.
func (db *DB) RehydrateInFlight(ctx context.Context) (int64, error) {
	result, err := db.db.ExecContext(ctx,
		`UPDATE actions SET status = ?, updated_at = ? WHERE status = ?`,
		models.ActionPending, time.Now(), models.ActionInFlight,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to rehydrate in-flight actions: %w", err)
	}
	return result.RowsAffected()
}

func (db *DB) CountActionsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM actions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count actions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (db *DB) ClearFailedActions(ctx context.Context) (int64, error) {
	result, err := db.db.ExecContext(ctx, `DELETE FROM actions WHERE status = ?`, models.ActionFailed)
	if err != nil {
		return 0, fmt.Errorf("failed to clear failed actions: %w", err)
	}
	return result.RowsAffected()
}

func (db *DB) queryActions(ctx context.Context, query string, args ...interface{}) ([]models.QueuedAction, error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var actions []models.QueuedAction
	for rows.Next() {
		var a models.QueuedAction
		var payload string
		err := rows.Scan(
			&a.Seq, &a.ID, &a.ActionType, &payload, &a.Status, &a.Attempts, &a.LastError, &a.EnqueuedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		a.Payload = []byte(payload)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
