package presence

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-core/domain"
	"chat-core/domain/event"
	"chat-core/friends"
)

const (
	alice = domain.UserID("alice")
	bob   = domain.UserID("bob")
	carol = domain.UserID("carol")
)

type captureEmitter struct {
	mu        sync.Mutex
	envelopes []event.Envelope
}

func (c *captureEmitter) Emit(env event.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.envelopes = append(c.envelopes, env)
}

func (c *captureEmitter) all() []event.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Envelope(nil), c.envelopes...)
}

type nopSink struct{}

func (nopSink) Consume(_ context.Context, _ event.DomainEvent) error { return nil }

func newRegistry(t *testing.T) (*Registry, *friends.Graph, *captureEmitter) {
	t.Helper()
	graph := friends.NewGraph()
	emitter := &captureEmitter{}
	return NewRegistry(slog.Default(), graph, emitter), graph, emitter
}

func TestRegistry_FirstConnectionNotifiesOnlineFriends(t *testing.T) {
	req := require.New(t)
	registry, graph, emitter := newRegistry(t)
	graph.Add(alice, bob)
	graph.Add(alice, carol)

	// Given bob is online, carol is not
	registry.Connect(bob, "conn-bob", nopSink{})

	// When alice comes online
	registry.Connect(alice, "conn-alice", nopSink{})

	req.True(registry.IsOnline(alice))

	// Then only bob receives the online transition
	envelopes := emitter.all()
	last := envelopes[len(envelopes)-1]
	req.Equal([]domain.UserID{bob}, last.Recipients)
	req.Equal(event.FriendStatus{User: alice, Online: true}, last.Event)
}

func TestRegistry_SecondConnectionIsSilent(t *testing.T) {
	req := require.New(t)
	registry, graph, emitter := newRegistry(t)
	graph.Add(alice, bob)
	registry.Connect(bob, "conn-bob", nopSink{})

	registry.Connect(alice, "conn-1", nopSink{})
	before := len(emitter.all())

	// A second connection of the same user does not re-announce
	registry.Connect(alice, "conn-2", nopSink{})
	req.Len(emitter.all(), before)

	// Dropping one of two connections keeps the user online, silently
	registry.Disconnect("conn-1")
	req.True(registry.IsOnline(alice))
	req.Len(emitter.all(), before)

	// Dropping the last one flips offline with one notification
	registry.Disconnect("conn-2")
	req.False(registry.IsOnline(alice))
	envelopes := emitter.all()
	req.Len(envelopes, before+1)
	req.Equal(event.FriendStatus{User: alice, Online: false}, envelopes[len(envelopes)-1].Event)
}

func TestRegistry_DisconnectUnknownIsNoop(t *testing.T) {
	req := require.New(t)
	registry, _, emitter := newRegistry(t)

	registry.Disconnect("ghost")

	req.Empty(emitter.all())
}

func TestRegistry_RouteReturnsEverySink(t *testing.T) {
	req := require.New(t)
	registry, _, _ := newRegistry(t)

	req.Empty(registry.Route(alice))

	registry.Connect(alice, "conn-1", nopSink{})
	registry.Connect(alice, "conn-2", nopSink{})
	req.Len(registry.Route(alice), 2)

	registry.Disconnect("conn-1")
	req.Len(registry.Route(alice), 1)
}
