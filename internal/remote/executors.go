package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"driftq/internal/domain"
)

// Stock action types the planner application dispatches.
const (
	ActionCreateEvent    = "createEvent"
	ActionCreateTodo     = "createTodo"
	ActionUpdateTodo     = "updateTodo"
	ActionDeleteTodo     = "deleteTodo"
	ActionCreateWidget   = "createWidget"
	ActionCreateReminder = "createReminder"
)

// RegisterStockHandlers wires each known mutation kind to its endpoint.
// Registration is last-wins, so an embedding application can override any of
// these before the driver starts.
func RegisterStockHandlers(reg domain.Registry, client *Client) {
	reg.Register(ActionCreateEvent, createHandler(client, "/api/v1/events"))
	reg.Register(ActionCreateTodo, createHandler(client, "/api/v1/todos"))
	reg.Register(ActionUpdateTodo, updateHandler(client, "/api/v1/todos"))
	reg.Register(ActionDeleteTodo, deleteHandler(client, "/api/v1/todos"))
	reg.Register(ActionCreateWidget, createHandler(client, "/api/v1/widgets"))
	reg.Register(ActionCreateReminder, createHandler(client, "/api/v1/reminders"))
}

func createHandler(client *Client, path string) domain.Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		return client.Invoke(ctx, http.MethodPost, path, payload)
	}
}

func updateHandler(client *Client, path string) domain.Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		id, err := entityID(payload)
		if err != nil {
			return err
		}
		return client.Invoke(ctx, http.MethodPatch, path+"/"+id, payload)
	}
}

func deleteHandler(client *Client, path string) domain.Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		id, err := entityID(payload)
		if err != nil {
			return err
		}
		return client.Invoke(ctx, http.MethodDelete, path+"/"+id, nil)
	}
}

// entityID pulls the target entity id out of the stored payload. Update and
// delete payloads must carry it; a payload without one is a malformed action,
// not a transient failure.
func entityID(payload json.RawMessage) (string, error) {
	var envelope struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	if envelope.ID == "" {
		return "", fmt.Errorf("payload is missing entity id")
	}
	return envelope.ID, nil
}
