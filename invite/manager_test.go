package invite

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-core/domain"
	"chat-core/domain/event"
	cherr "chat-core/errors"
	"chat-core/mocks"
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

type fixture struct {
	manager  *Manager
	store    *store.Store
	friends  *mocks.MockFriendGraph
	presence *mocks.MockIPresence
	members  *mocks.MockIMembership
	emitter  *captureEmitter
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := fixture{
		store:    store.NewStore(slog.Default()),
		friends:  mocks.NewMockFriendGraph(ctrl),
		presence: mocks.NewMockIPresence(ctrl),
		members:  mocks.NewMockIMembership(ctrl),
		emitter:  &captureEmitter{},
	}
	f.manager = NewManager(slog.Default(), f.friends, f.presence, f.store, f.members, f.emitter)
	return f
}

func (f fixture) befriendOnline(users ...domain.UserID) {
	for _, u := range users {
		f.friends.EXPECT().IsFriend(gomock.Any(), u).Return(true).AnyTimes()
		f.presence.EXPECT().IsOnline(u).Return(true).AnyTimes()
	}
}

func TestCreateInvite_DirectHappyPath(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.befriendOnline(bob)

	result, err := f.manager.CreateInvite(alice, []domain.UserID{bob}, false)

	req.NoError(err)
	req.False(result.Existing)

	// The session is pending with the inviter as sole participant
	snap, err := f.store.Get(result.Session)
	req.NoError(err)
	req.Equal(domain.DirectSession, snap.Type)
	req.Equal(domain.SessionPending, snap.State)
	req.Equal([]domain.UserID{alice}, snap.Participants)

	// The target got exactly one chat_invite
	envelopes := f.emitter.all()
	req.Len(envelopes, 1)
	req.Equal([]domain.UserID{bob}, envelopes[0].Recipients)
	req.Equal(event.ChatInvite{From: alice, Session: result.Session, IsGroup: false}, envelopes[0].Event)

	// And holds one pending invite
	pending := f.manager.PendingFor(bob)
	req.Len(pending, 1)
	req.Equal(alice, pending[0].From)
	req.Equal(result.Session, pending[0].Session)
}

func TestCreateInvite_RejectsNonFriendBeforeOffline(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.friends.EXPECT().IsFriend(alice, bob).Return(false).Times(1)
	// IsOnline must not be consulted for a non-friend

	_, err := f.manager.CreateInvite(alice, []domain.UserID{bob}, false)

	req.ErrorIs(err, cherr.ErrNotFriend)
	req.Contains(err.Error(), "bob")
	req.Empty(f.emitter.all())
	req.Empty(f.manager.PendingFor(bob))
}

func TestCreateInvite_RejectsOfflineTarget(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.friends.EXPECT().IsFriend(alice, bob).Return(true).Times(1)
	f.presence.EXPECT().IsOnline(bob).Return(false).Times(1)

	_, err := f.manager.CreateInvite(alice, []domain.UserID{bob}, false)

	req.ErrorIs(err, cherr.ErrTargetOffline)
	req.Empty(f.emitter.all())
}

func TestCreateInvite_GroupFailsAtomicallyOnOneBadTarget(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.friends.EXPECT().IsFriend(alice, gomock.Any()).Return(true).AnyTimes()
	f.presence.EXPECT().IsOnline(bob).Return(true).AnyTimes()
	f.presence.EXPECT().IsOnline(carol).Return(false).AnyTimes()

	_, err := f.manager.CreateInvite(alice, []domain.UserID{bob, carol}, true)

	req.ErrorIs(err, cherr.ErrTargetOffline)
	req.Contains(err.Error(), "carol")
	// Nothing was created for the valid target either
	req.Empty(f.emitter.all())
	req.Empty(f.manager.PendingFor(bob))
}

func TestCreateInvite_IgnoresSelfAndDuplicateTargets(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.befriendOnline(bob)

	result, err := f.manager.CreateInvite(alice, []domain.UserID{bob, bob, alice}, true)

	req.NoError(err)
	req.Len(f.manager.PendingFor(bob), 1)
	req.Empty(f.manager.PendingFor(alice))
	req.Len(f.emitter.all(), 1)

	snap, err := f.store.Get(result.Session)
	req.NoError(err)
	req.Equal(domain.GroupSession, snap.Type)
}

func TestCreateInvite_SelfOnlyHasNoTarget(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.manager.CreateInvite(alice, []domain.UserID{alice}, false)

	req.Error(err)
}

func TestCreateInvite_DirectAcceptsExactlyOneTarget(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.befriendOnline(bob, carol)

	_, err := f.manager.CreateInvite(alice, []domain.UserID{bob, carol}, false)

	req.Error(err)
}

func TestCreateInvite_DuplicateGroupReturnsExistingSession(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.befriendOnline(bob, carol)

	first, err := f.manager.CreateInvite(alice, []domain.UserID{bob, carol}, true)
	req.NoError(err)
	req.False(first.Existing)

	second, err := f.manager.CreateInvite(alice, []domain.UserID{carol, bob}, true)
	req.NoError(err)
	req.True(second.Existing)
	req.Equal(first.Session, second.Session)

	// The duplicate produced no new invites or events
	req.Len(f.manager.PendingFor(bob), 1)
	req.Len(f.emitter.all(), 2)
}

func TestRespond_AcceptDelegatesToMembership(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.befriendOnline(bob)

	result, err := f.manager.CreateInvite(alice, []domain.UserID{bob}, false)
	req.NoError(err)

	f.members.EXPECT().Join(bob, result.Session).Return(nil).Times(1)

	req.NoError(f.manager.Respond(bob, result.Session, true))
	req.Empty(f.manager.PendingFor(bob))
}

func TestRespond_DeclineNotifiesInviterOnly(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.befriendOnline(bob)

	result, err := f.manager.CreateInvite(alice, []domain.UserID{bob}, false)
	req.NoError(err)

	req.NoError(f.manager.Respond(bob, result.Session, false))

	envelopes := f.emitter.all()
	last := envelopes[len(envelopes)-1]
	req.Equal([]domain.UserID{alice}, last.Recipients)
	req.Equal(event.InviteDeclined{Session: result.Session, By: bob}, last.Event)
}

func TestRespond_IsIdempotencyGuarded(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.befriendOnline(bob)

	result, err := f.manager.CreateInvite(alice, []domain.UserID{bob}, false)
	req.NoError(err)

	req.NoError(f.manager.Respond(bob, result.Session, false))
	before := len(f.emitter.all())

	// The second response finds nothing to consume and emits nothing
	err = f.manager.Respond(bob, result.Session, true)
	req.ErrorIs(err, cherr.ErrInviteNotFound)
	req.Len(f.emitter.all(), before)
}

func TestRespond_UnknownInvite(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	err := f.manager.Respond(bob, "nope", true)
	req.ErrorIs(err, cherr.ErrInviteNotFound)
}

func TestPendingFor_OldestFirst(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.befriendOnline(bob, carol)

	first, err := f.manager.CreateInvite(alice, []domain.UserID{bob}, false)
	req.NoError(err)
	time.Sleep(2 * time.Millisecond)
	second, err := f.manager.CreateInvite(carol, []domain.UserID{bob}, true)
	req.NoError(err)

	pending := f.manager.PendingFor(bob)
	req.Len(pending, 2)
	req.Equal(first.Session, pending[0].Session)
	req.Equal(second.Session, pending[1].Session)
	req.False(pending[0].CreatedAt.After(pending[1].CreatedAt))
}
