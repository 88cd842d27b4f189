// Package event defines the outbound domain events of the chat core and the
// envelope routing them to recipients. Events are fire-and-forget and
// best-effort to currently-online recipients; durable history is the
// recovery path for anyone missed.
package event

import (
	"chat-core/domain"
)

type DomainEvent interface {
	Name() string
}

// Envelope pairs an event with the users it targets. Permanent sinks
// (persistence, projections, search) consume every envelope regardless of
// recipients; an empty recipient list means "side-effect sinks only".
type Envelope struct {
	Recipients []domain.UserID
	Event      DomainEvent
}

// FriendStatus is fanned out to a user's online friends on presence edges.
type FriendStatus struct {
	User   domain.UserID `json:"user_id"`
	Online bool          `json:"online"`
}

func (FriendStatus) Name() string { return "friend_status" }

// ChatInvite notifies a target that an invitation awaits a response.
type ChatInvite struct {
	From    domain.UserID    `json:"from"`
	Session domain.SessionID `json:"session_id"`
	IsGroup bool             `json:"is_group"`
}

func (ChatInvite) Name() string { return "chat_invite" }

// InviteDeclined goes back to the original inviter.
type InviteDeclined struct {
	Session domain.SessionID `json:"session_id"`
	By      domain.UserID    `json:"by_user"`
}

func (InviteDeclined) Name() string { return "invite_declined" }

// SessionJoined is delivered to the accepting user with the full state.
type SessionJoined struct {
	Session      domain.SessionID `json:"session_id"`
	Participants []domain.UserID  `json:"participants"`
	Messages     []domain.Message `json:"messages"`
}

func (SessionJoined) Name() string { return "session_joined" }

// UserJoined is delivered to the members that were already in the session.
type UserJoined struct {
	Session      domain.SessionID `json:"session_id"`
	User         domain.UserID    `json:"user_id"`
	Participants []domain.UserID  `json:"participants"`
}

func (UserJoined) Name() string { return "user_joined" }

// AddedToGroup carries the history snapshot to a late joiner.
type AddedToGroup struct {
	Session      domain.SessionID `json:"session_id"`
	Participants []domain.UserID  `json:"participants"`
	Messages     []domain.Message `json:"history"`
}

func (AddedToGroup) Name() string { return "added_to_group" }

// NewMessage is fanned out to every online active participant, sender
// included, so optimistic UIs can reconcile.
type NewMessage struct {
	Session domain.SessionID `json:"session_id"`
	Message domain.Message   `json:"message"`
}

func (NewMessage) Name() string { return "new_message" }

// UserLeft is delivered to the participants remaining after a departure.
type UserLeft struct {
	Session      domain.SessionID `json:"session_id"`
	User         domain.UserID    `json:"user_id"`
	Participants []domain.UserID  `json:"participants"`
}

func (UserLeft) Name() string { return "user_left" }

// SessionChanged is an internal snapshot event for permanent sinks; it never
// targets users.
type SessionChanged struct {
	Record domain.SessionRecord `json:"record"`
}

func (SessionChanged) Name() string { return "session_changed" }
