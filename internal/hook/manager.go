package hook

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Manager manages hook handlers and triggers. A nil *Manager is valid and
// allows everything.
type Manager struct {
	handlers map[HookPoint][]Handler
	mu       sync.RWMutex
}

// NewManager creates a new hook manager
func NewManager() *Manager {
	return &Manager{
		handlers: make(map[HookPoint][]Handler),
	}
}

// Register adds a handler to the manager. Handlers with equal priority run
// in registration order.
func (m *Manager) Register(handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, point := range handler.Points() {
		list := append(m.handlers[point], handler)
		slices.SortStableFunc(list, func(a, b Handler) int {
			return b.Priority() - a.Priority()
		})
		m.handlers[point] = list
	}
}

// Trigger executes all handlers for a hook point in priority order. The first
// denial stops the chain and is returned.
func (m *Manager) Trigger(ctx context.Context, data *HookData) (*Feedback, error) {
	if m == nil {
		return AllowFeedback(), nil
	}

	m.mu.RLock()
	handlers := slices.Clone(m.handlers[data.Point])
	m.mu.RUnlock()

	for _, handler := range handlers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		feedback, err := handler.Handle(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("hook %s: %w", handler.Name(), err)
		}
		if feedback == nil {
			continue
		}
		if !feedback.Allow {
			return feedback, nil
		}
	}

	return AllowFeedback(), nil
}

// Notify triggers point for observers only; feedback and errors are ignored.
func (m *Manager) Notify(ctx context.Context, data *HookData) {
	if m == nil {
		return
	}
	_, _ = m.Trigger(ctx, data)
}

// HasHandlers checks if there are handlers for a hook point
func (m *Manager) HasHandlers(point HookPoint) bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[point]) > 0
}

// ListHandlers returns handler names for a hook point
func (m *Manager) ListHandlers(point HookPoint) []string {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	handlers := m.handlers[point]
	names := make([]string, len(handlers))
	for i, h := range handlers {
		names[i] = h.Name()
	}
	return names
}
