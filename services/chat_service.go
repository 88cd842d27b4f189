package services

import (
	"context"
	"fmt"

	"chat-core/contract"
	"chat-core/domain"
	cherr "chat-core/errors"
	"chat-core/invite"
	"chat-core/runtime"
	"chat-core/search"
	"chat-core/store"
)

type IChatService interface {
	Connect(user domain.UserID, conn domain.ConnectionID, sink contract.EventSink)
	Disconnect(conn domain.ConnectionID)
	SendInvite(inviter domain.UserID, targets []domain.UserID, isGroup bool) (invite.CreateResult, error)
	RespondInvite(user domain.UserID, session domain.SessionID, accept bool) error
	SendMessage(sender domain.UserID, session domain.SessionID, content string) (domain.Message, error)
	InviteToGroup(inviter domain.UserID, session domain.SessionID, invitee domain.UserID) error
	LeaveChat(user domain.UserID, session domain.SessionID) error
	GetChat(user domain.UserID, session domain.SessionID) (store.Snapshot, error)
	ListChats(user domain.UserID) []store.Summary
	PendingInvites(user domain.UserID) []domain.PendingInvite
	SearchMessages(ctx context.Context, user domain.UserID, terms string, session domain.SessionID, limit int) ([]search.Hit, error)
}

// ChatService is the facade the gateway talks to; it delegates to the
// orchestrated components.
type ChatService struct {
	orchestrator *runtime.Orchestrator
	index        *search.Index
}

func NewChatService(o *runtime.Orchestrator, index *search.Index) *ChatService {
	return &ChatService{orchestrator: o, index: index}
}

func (s *ChatService) Connect(user domain.UserID, conn domain.ConnectionID, sink contract.EventSink) {
	s.orchestrator.Presence.Connect(user, conn, sink)
}

func (s *ChatService) Disconnect(conn domain.ConnectionID) {
	s.orchestrator.Presence.Disconnect(conn)
}

func (s *ChatService) SendInvite(inviter domain.UserID, targets []domain.UserID, isGroup bool) (invite.CreateResult, error) {
	return s.orchestrator.Invites.CreateInvite(inviter, targets, isGroup)
}

func (s *ChatService) RespondInvite(user domain.UserID, session domain.SessionID, accept bool) error {
	return s.orchestrator.Invites.Respond(user, session, accept)
}

func (s *ChatService) SendMessage(sender domain.UserID, session domain.SessionID, content string) (domain.Message, error) {
	return s.orchestrator.Router.Send(sender, session, content)
}

func (s *ChatService) InviteToGroup(inviter domain.UserID, session domain.SessionID, invitee domain.UserID) error {
	return s.orchestrator.Members.InviteToGroup(inviter, session, invitee)
}

func (s *ChatService) LeaveChat(user domain.UserID, session domain.SessionID) error {
	return s.orchestrator.Members.Leave(user, session)
}

// GetChat returns the session snapshot after checking membership.
func (s *ChatService) GetChat(user domain.UserID, session domain.SessionID) (store.Snapshot, error) {
	snap, err := s.orchestrator.Store.Get(session)
	if err != nil {
		return store.Snapshot{}, err
	}
	if !snap.IsParticipant(user) {
		return store.Snapshot{}, fmt.Errorf("user %s in session %s: %w", user, session, cherr.ErrNotParticipant)
	}
	return snap, nil
}

func (s *ChatService) ListChats(user domain.UserID) []store.Summary {
	return s.orchestrator.Store.ListFor(user)
}

func (s *ChatService) PendingInvites(user domain.UserID) []domain.PendingInvite {
	return s.orchestrator.Invites.PendingFor(user)
}

// SearchMessages queries the full-text index. Hits from sessions the caller
// is not a member of are filtered out.
func (s *ChatService) SearchMessages(ctx context.Context, user domain.UserID, terms string,
	session domain.SessionID, limit int) ([]search.Hit, error) {
	if s.index == nil {
		return nil, nil
	}
	hits, err := s.index.Search(ctx, terms, session, limit)
	if err != nil {
		return nil, err
	}
	var visible []search.Hit
	for _, hit := range hits {
		if snap, err := s.orchestrator.Store.Get(hit.Session); err == nil && snap.IsParticipant(user) {
			visible = append(visible, hit)
		}
	}
	return visible, nil
}
