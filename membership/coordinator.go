// Package membership coordinates joins, group invitations and departures,
// including the session teardown policies.
package membership

import (
	"fmt"
	"log/slog"

	"chat-core/contract"
	"chat-core/domain"
	"chat-core/domain/event"
	cherr "chat-core/errors"
	"chat-core/store"
)

// RetireDirectOnFirstLeave: either party leaving a direct session retires it
// immediately. The alternative (wait for both) would leave half-open
// one-to-one sessions nobody can write to.
const RetireDirectOnFirstLeave = true

// PromoteDirectOnGroupInvite: inviting into a direct session promotes it to
// a group session instead of rejecting, keeping id and history.
const PromoteDirectOnGroupInvite = true

type Coordinator struct {
	log     *slog.Logger
	store   *store.Store
	emitter contract.Emitter
}

func NewCoordinator(log *slog.Logger, sessions *store.Store, emitter contract.Emitter) *Coordinator {
	return &Coordinator{log: log, store: sessions, emitter: emitter}
}

// Join completes an accepted invite: the user becomes an active participant,
// receives the full session state, and the members already present get a
// user_joined notification. A second join on an already-active direct
// session is rejected with AlreadyActive.
func (c *Coordinator) Join(user domain.UserID, session domain.SessionID) error {
	snap, err := c.store.Get(session)
	if err != nil {
		return err
	}
	if snap.Type == domain.DirectSession && snap.State == domain.SessionActive {
		return fmt.Errorf("direct session %s: %w", session, cherr.ErrAlreadyActive)
	}

	participants, err := c.store.AddParticipant(session, user)
	if err != nil {
		return err
	}
	c.log.Info("User joined session", "user", user, "session", session)

	snap, err = c.store.Get(session)
	if err != nil {
		return err
	}
	c.emitter.Emit(event.Envelope{
		Recipients: []domain.UserID{user},
		Event: event.SessionJoined{
			Session:      session,
			Participants: participants,
			Messages:     snap.Messages,
		},
	})
	c.notifyOthers(session, user, participants)
	c.snapshotSession(session)
	return nil
}

// InviteToGroup adds invitee directly to a group session. A direct session
// is first promoted. The inviter must be active, the invitee must not be.
// The late joiner receives the full history, not just future messages.
func (c *Coordinator) InviteToGroup(inviter domain.UserID, session domain.SessionID, invitee domain.UserID) error {
	snap, err := c.store.Get(session)
	if err != nil {
		return err
	}
	if !snap.IsParticipant(inviter) {
		return fmt.Errorf("%s in %s: %w", inviter, session, cherr.ErrNotParticipant)
	}
	if snap.Type == domain.DirectSession {
		if !PromoteDirectOnGroupInvite {
			return fmt.Errorf("direct session %s cannot take members: %w", session, cherr.ErrSessionNotFound)
		}
		if err := c.store.Promote(session); err != nil {
			return err
		}
	}

	participants, err := c.store.AddParticipant(session, invitee)
	if err != nil {
		return err
	}
	c.log.Info("User added to group", "inviter", inviter, "invitee", invitee, "session", session)

	snap, err = c.store.Get(session)
	if err != nil {
		return err
	}
	c.emitter.Emit(event.Envelope{
		Recipients: []domain.UserID{invitee},
		Event: event.AddedToGroup{
			Session:      session,
			Participants: participants,
			Messages:     snap.Messages,
		},
	})
	c.notifyOthers(session, invitee, participants)
	c.snapshotSession(session)
	return nil
}

// Leave removes the user. A repeat leave reports NotParticipant. Remaining
// online members get user_left; an emptied session retires per store rules,
// and a direct session retires on the first departure per policy.
func (c *Coordinator) Leave(user domain.UserID, session domain.SessionID) error {
	snap, err := c.store.Get(session)
	if err != nil {
		return err
	}

	remaining, retired, err := c.store.RemoveParticipant(session, user)
	if err != nil {
		return err
	}

	if !retired && snap.Type == domain.DirectSession && RetireDirectOnFirstLeave {
		if remaining, err = c.store.Retire(session); err != nil {
			return err
		}
		retired = true
	}

	c.log.Info("User left session", "user", user, "session", session, "retired", retired)
	if len(remaining) > 0 {
		c.emitter.Emit(event.Envelope{
			Recipients: remaining,
			Event:      event.UserLeft{Session: session, User: user, Participants: remaining},
		})
	}
	c.snapshotSession(session)
	return nil
}

// notifyOthers sends user_joined to every participant but the newcomer.
func (c *Coordinator) notifyOthers(session domain.SessionID, joined domain.UserID, participants []domain.UserID) {
	var others []domain.UserID
	for _, p := range participants {
		if p != joined {
			others = append(others, p)
		}
	}
	if len(others) == 0 {
		return
	}
	c.emitter.Emit(event.Envelope{
		Recipients: others,
		Event:      event.UserJoined{Session: session, User: joined, Participants: participants},
	})
}

// snapshotSession hands the updated record to permanent sinks only.
func (c *Coordinator) snapshotSession(session domain.SessionID) {
	record, err := c.store.Record(session)
	if err != nil {
		return
	}
	c.emitter.Emit(event.Envelope{Event: event.SessionChanged{Record: record}})
}
