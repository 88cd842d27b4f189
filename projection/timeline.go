// Package projection builds local read models from observed events.
// Handles ordering and projections; it does not emit events.
package projection

import (
	"context"
	"sync"

	"chat-core/domain"
	"chat-core/domain/event"
)

// Timeline keeps the per-session message sequence as observed on the event
// pipeline, so it can be compared against the store log to verify delivery
// order.
type Timeline struct {
	mu       sync.Mutex
	sessions map[domain.SessionID][]domain.Message
}

func NewTimeline() *Timeline {
	return &Timeline{sessions: make(map[domain.SessionID][]domain.Message)}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.NewMessage)
	if !ok {
		return nil
	}
	t.mu.Lock()
	t.sessions[evt.Session] = append(t.sessions[evt.Session], evt.Message)
	t.mu.Unlock()
	return nil
}

// Messages returns the observed sequence for one session.
func (t *Timeline) Messages(session domain.SessionID) []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.Message(nil), t.sessions[session]...)
}
