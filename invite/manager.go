// Package invite implements the friend-gated invitation protocol: creation,
// duplicate-session detection and the accept/decline handshake.
package invite

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"chat-core/contract"
	"chat-core/domain"
	"chat-core/domain/event"
	cherr "chat-core/errors"
	"chat-core/store"
)

type Manager struct {
	mu       sync.Mutex
	log      *slog.Logger
	friends  contract.FriendGraph
	presence contract.IPresence
	store    *store.Store
	members  contract.IMembership
	emitter  contract.Emitter
	pending  map[domain.UserID]map[domain.SessionID]domain.PendingInvite
}

func NewManager(log *slog.Logger, friends contract.FriendGraph, presence contract.IPresence,
	sessions *store.Store, members contract.IMembership, emitter contract.Emitter) *Manager {
	return &Manager{
		log:      log,
		friends:  friends,
		presence: presence,
		store:    sessions,
		members:  members,
		emitter:  emitter,
		pending:  make(map[domain.UserID]map[domain.SessionID]domain.PendingInvite),
	}
}

// CreateResult reports the session an invite resolved to. Existing is true
// when an identical-participant group session was reused instead of a new
// one being created; the caller gets the live id either way.
type CreateResult struct {
	Session  domain.SessionID
	Existing bool
}

// CreateInvite validates every target (friendship, then reachability),
// creates or reuses a session and queues one pending invite per target.
// There is no wait-for-online semantics: an offline target fails the whole
// call immediately and nothing is created.
func (m *Manager) CreateInvite(inviter domain.UserID, targets []domain.UserID, isGroup bool) (CreateResult, error) {
	targets = lo.Uniq(lo.Without(targets, inviter))
	if len(targets) == 0 {
		return CreateResult{}, fmt.Errorf("invite needs at least one target")
	}
	for _, target := range targets {
		if !m.friends.IsFriend(inviter, target) {
			return CreateResult{}, fmt.Errorf("%s: %w", target, cherr.ErrNotFriend)
		}
		if !m.presence.IsOnline(target) {
			return CreateResult{}, fmt.Errorf("%s: %w", target, cherr.ErrTargetOffline)
		}
	}

	var result CreateResult
	if isGroup {
		id, existing := m.store.CreateGroup(inviter, targets)
		result = CreateResult{Session: id, Existing: existing}
		if existing {
			m.log.Info("Duplicate group invite resolved to existing session",
				"inviter", inviter, "session", id)
			return result, nil
		}
	} else {
		if len(targets) > 1 {
			return CreateResult{}, fmt.Errorf("direct invite accepts one target, got %d", len(targets))
		}
		result = CreateResult{Session: m.store.CreateDirect(inviter, targets[0])}
	}

	snapshot := append([]domain.UserID{inviter}, targets...)
	m.mu.Lock()
	for _, target := range targets {
		if m.pending[target] == nil {
			m.pending[target] = make(map[domain.SessionID]domain.PendingInvite)
		}
		m.pending[target][result.Session] = domain.PendingInvite{
			From:         inviter,
			Session:      result.Session,
			IsGroup:      isGroup,
			Participants: snapshot,
			CreatedAt:    time.Now().UTC(),
		}
	}
	m.mu.Unlock()

	for _, target := range targets {
		m.emitter.Emit(event.Envelope{
			Recipients: []domain.UserID{target},
			Event:      event.ChatInvite{From: inviter, Session: result.Session, IsGroup: isGroup},
		})
	}
	m.log.Info("Invite created", "inviter", inviter, "session", result.Session,
		"targets", len(targets), "group", isGroup)
	return result, nil
}

// Respond consumes the pending invite exactly once; a replayed response for
// the same (user, session) pair fails with InviteNotFound and causes no
// further notifications. Accepting delegates to the membership coordinator.
func (m *Manager) Respond(user domain.UserID, session domain.SessionID, accept bool) error {
	m.mu.Lock()
	invite, ok := m.pending[user][session]
	if ok {
		delete(m.pending[user], session)
		if len(m.pending[user]) == 0 {
			delete(m.pending, user)
		}
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s for %s: %w", user, session, cherr.ErrInviteNotFound)
	}

	if !accept {
		m.store.DropExpected(session, user)
		m.emitter.Emit(event.Envelope{
			Recipients: []domain.UserID{invite.From},
			Event:      event.InviteDeclined{Session: session, By: user},
		})
		m.log.Info("Invite declined", "user", user, "session", session)
		return nil
	}
	return m.members.Join(user, session)
}

// PendingFor lists the unresolved invites of a user, oldest first.
func (m *Manager) PendingFor(user domain.UserID) []domain.PendingInvite {
	m.mu.Lock()
	defer m.mu.Unlock()

	return sortByCreation(lo.Values(m.pending[user]))
}

func sortByCreation(invites []domain.PendingInvite) []domain.PendingInvite {
	for i := 1; i < len(invites); i++ {
		for j := i; j > 0 && invites[j].CreatedAt.Before(invites[j-1].CreatedAt); j-- {
			invites[j], invites[j-1] = invites[j-1], invites[j]
		}
	}
	return invites
}
