// Package presence owns the binding between users and their live
// connections. Online state is derived: a user is online iff at least one
// connection is registered.
package presence

import (
	"log/slog"
	"sync"

	"chat-core/contract"
	"chat-core/domain"
	"chat-core/domain/event"
)

type connEntry struct {
	user domain.UserID
	sink contract.EventSink
}

type Registry struct {
	mu      sync.RWMutex
	log     *slog.Logger
	friends contract.FriendGraph
	emitter contract.Emitter
	conns   map[domain.ConnectionID]connEntry
	users   map[domain.UserID]map[domain.ConnectionID]contract.EventSink
}

func NewRegistry(log *slog.Logger, friends contract.FriendGraph, emitter contract.Emitter) *Registry {
	return &Registry{
		log:     log,
		friends: friends,
		emitter: emitter,
		conns:   make(map[domain.ConnectionID]connEntry),
		users:   make(map[domain.UserID]map[domain.ConnectionID]contract.EventSink),
	}
}

// Connect registers a connection for the user. The first connection flips
// the user online and notifies every online friend once.
func (r *Registry) Connect(user domain.UserID, conn domain.ConnectionID, sink contract.EventSink) {
	r.mu.Lock()
	r.conns[conn] = connEntry{user: user, sink: sink}
	sinks, existed := r.users[user]
	if !existed {
		sinks = make(map[domain.ConnectionID]contract.EventSink)
		r.users[user] = sinks
	}
	first := len(sinks) == 0
	sinks[conn] = sink
	r.mu.Unlock()

	r.log.Debug("Connection registered", "user", user, "conn", conn)
	if first {
		r.notifyFriends(user, true)
	}
}

// Disconnect removes the connection. Removing the last one flips the user
// offline with the same friend fan-out. An unknown handle is a no-op since
// disconnects can race with other cleanup.
func (r *Registry) Disconnect(conn domain.ConnectionID) {
	r.mu.Lock()
	entry, ok := r.conns[conn]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, conn)

	last := false
	if sinks, ok := r.users[entry.user]; ok {
		delete(sinks, conn)
		if len(sinks) == 0 {
			delete(r.users, entry.user)
			last = true
		}
	}
	r.mu.Unlock()

	r.log.Debug("Connection removed", "user", entry.user, "conn", conn)
	if last {
		r.notifyFriends(entry.user, false)
	}
}

func (r *Registry) IsOnline(user domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[user]) > 0
}

// Route returns the delivery sinks of every live connection of the user.
// The snapshot may be stale by the time a send is attempted; a send to a
// just-closed connection fails soft.
func (r *Registry) Route(user domain.UserID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks, ok := r.users[user]
	if !ok {
		return nil
	}
	out := make([]contract.EventSink, 0, len(sinks))
	for _, sink := range sinks {
		out = append(out, sink)
	}
	return out
}

// notifyFriends emits one presence transition to each currently-online
// friend of the user.
func (r *Registry) notifyFriends(user domain.UserID, online bool) {
	var recipients []domain.UserID
	for _, friend := range r.friends.FriendsOf(user) {
		if r.IsOnline(friend) {
			recipients = append(recipients, friend)
		}
	}
	r.emitter.Emit(event.Envelope{
		Recipients: recipients,
		Event:      event.FriendStatus{User: user, Online: online},
	})
}
