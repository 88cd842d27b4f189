//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-core/domain"
	"chat-core/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself: the supervisor recovers panics and
// restarts it.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// for logging and supervision purposes, avoiding manual naming in the
// Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink consumes outbound domain events. Live connections, projections,
// the disk sink and the search index all implement it.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Emitter accepts envelopes for asynchronous fan-out.
type Emitter interface {
	Emit(env event.Envelope)
}

// FriendGraph answers friendship queries. Backed externally by the
// persistent social graph; this core only reads it.
type FriendGraph interface {
	IsFriend(a, b domain.UserID) bool
	FriendsOf(a domain.UserID) []domain.UserID
}

// IdentityProvider resolves a connection's authenticated user. The core
// trusts the identity handed to it at connect time.
type IdentityProvider interface {
	Identify(token string) (domain.UserID, error)
}

// Persistence is the optional durable collaborator. The in-memory variant
// is a valid implementation where these are no-ops backed by process memory.
type Persistence interface {
	SaveSession(record domain.SessionRecord) error
	SaveMessage(message domain.Message) error
	LoadSessionsFor(user domain.UserID) ([]domain.SessionRecord, error)
	LoadMessages(session domain.SessionID, limit int) ([]domain.Message, error)
}

// IPresence is the connection registry surface the other components need.
type IPresence interface {
	Connect(user domain.UserID, conn domain.ConnectionID, sink EventSink)
	Disconnect(conn domain.ConnectionID)
	IsOnline(user domain.UserID) bool
	Route(user domain.UserID) []EventSink
}

// IMembership is consumed by the invitation manager on accept.
type IMembership interface {
	Join(user domain.UserID, session domain.SessionID) error
}
