// Package observability aggregates runtime counters for logs and the debug
// endpoint. Counters are atomic so hot paths never contend on a lock.
package observability

import (
	"sync/atomic"
	"time"
)

type Manager struct {
	started             time.Time
	messagesRouted      uint64
	eventsDelivered     uint64
	deliveryFailures    uint64
	presenceTransitions uint64
}

func NewManager() *Manager {
	return &Manager{started: time.Now()}
}

func (m *Manager) IncrMessagesRouted()      { atomic.AddUint64(&m.messagesRouted, 1) }
func (m *Manager) IncrEventsDelivered()     { atomic.AddUint64(&m.eventsDelivered, 1) }
func (m *Manager) IncrDeliveryFailures()    { atomic.AddUint64(&m.deliveryFailures, 1) }
func (m *Manager) IncrPresenceTransitions() { atomic.AddUint64(&m.presenceTransitions, 1) }

// Snapshot returns a point-in-time view for logging and the debug inspector.
func (m *Manager) Snapshot() map[string]any {
	return map[string]any{
		"uptime_s":             int(time.Since(m.started).Seconds()),
		"messages_routed":      atomic.LoadUint64(&m.messagesRouted),
		"events_delivered":     atomic.LoadUint64(&m.eventsDelivered),
		"delivery_failures":    atomic.LoadUint64(&m.deliveryFailures),
		"presence_transitions": atomic.LoadUint64(&m.presenceTransitions),
	}
}
