package router

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-core/domain"
	"chat-core/domain/event"
	cherr "chat-core/errors"
	"chat-core/observability"
	"chat-core/store"
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

func newRouter(t *testing.T) (*Router, *store.Store, *captureEmitter, *observability.Manager) {
	t.Helper()
	sessions := store.NewStore(slog.Default())
	emitter := &captureEmitter{}
	stats := observability.NewManager()
	return NewRouter(slog.Default(), sessions, emitter, stats), sessions, emitter, stats
}

func TestSend_TargetsEveryActiveParticipant(t *testing.T) {
	req := require.New(t)
	router, sessions, emitter, stats := newRouter(t)

	id := sessions.CreateDirect(alice, bob)
	_, err := sessions.AddParticipant(id, bob)
	req.NoError(err)

	msg, err := router.Send(alice, id, "hello bob")

	req.NoError(err)
	req.Equal(uint64(1), msg.Seq)
	req.Equal("hello bob", msg.Content)

	envelopes := emitter.all()
	req.Len(envelopes, 1)
	// Sender included, so optimistic UIs can reconcile
	req.ElementsMatch([]domain.UserID{alice, bob}, envelopes[0].Recipients)
	payload := envelopes[0].Event.(event.NewMessage)
	req.Equal(msg.ID, payload.Message.ID)

	req.Equal(uint64(1), stats.Snapshot()["messages_routed"])
}

func TestSend_RejectsNonParticipants(t *testing.T) {
	req := require.New(t)
	router, sessions, emitter, _ := newRouter(t)

	id := sessions.CreateDirect(alice, bob)

	// bob has not accepted yet
	_, err := router.Send(bob, id, "too early")
	req.ErrorIs(err, cherr.ErrNotParticipant)

	// carol was never invited
	_, err = router.Send(carol, id, "hi")
	req.ErrorIs(err, cherr.ErrNotParticipant)

	_, err = router.Send(alice, "nope", "hi")
	req.ErrorIs(err, cherr.ErrSessionNotFound)

	req.Empty(emitter.all())
}

func TestSend_ConcurrentSendersKeepLogOrder(t *testing.T) {
	req := require.New(t)
	router, sessions, emitter, _ := newRouter(t)

	id := sessions.CreateDirect(alice, bob)
	_, err := sessions.AddParticipant(id, bob)
	req.NoError(err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = router.Send(alice, id, "from alice")
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = router.Send(bob, id, "from bob")
		}()
	}
	wg.Wait()

	// Fan-out order matches the per-session sequence exactly
	envelopes := emitter.all()
	req.Len(envelopes, 20)
	for i, env := range envelopes {
		payload := env.Event.(event.NewMessage)
		req.Equal(uint64(i+1), payload.Message.Seq)
	}
}
