package dispatch

import (
	"fmt"
	"sync"

	"driftq/internal/domain"
)

// UnregisteredActionError is returned when no handler exists for an action
// type. Dispatching an unknown type is a programming error and must never
// enqueue an action that can never succeed.
type UnregisteredActionError struct {
	ActionType string
}

func (e *UnregisteredActionError) Error() string {
	return fmt.Sprintf("no handler registered for action type %q", e.ActionType)
}

// Registry maps action type tags to their executors. Registration happens at
// process start; re-registering a type overwrites the previous handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]domain.Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]domain.Handler)}
}

func (r *Registry) Register(actionType string, handler domain.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[actionType] = handler
}

func (r *Registry) Handler(actionType string) (domain.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[actionType]
	if !ok {
		return nil, &UnregisteredActionError{ActionType: actionType}
	}
	return handler, nil
}

// Types returns the registered action types, for startup logging.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
