package gateway

import "chat-core/domain"

// Inbound frame types the client may send over the socket.
const (
	frameSendInvite     = "send_chat_invite"
	frameInviteResponse = "chat_invite_response"
	frameSendMessage    = "send_message"
	frameInviteToGroup  = "invite_to_group"
	frameLeaveChat      = "leave_chat"
	frameListChats      = "list_chats"
	frameGetChat        = "get_chat"
	framePendingInvites = "pending_invites"
	frameSearchMessages = "search_messages"
	framePing           = "ping"
)

type inboundFrame struct {
	Type string `json:"type" validate:"required"`

	Targets []string `json:"targets,omitempty"`
	IsGroup bool     `json:"is_group,omitempty"`
	Session string   `json:"session,omitempty"`
	Accept  bool     `json:"accept,omitempty"`
	Content string   `json:"content,omitempty"`
	User    string   `json:"user,omitempty"`
	Terms   string   `json:"terms,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

func (f inboundFrame) sessionID() domain.SessionID {
	return domain.SessionID(f.Session)
}

func (f inboundFrame) targetIDs() []domain.UserID {
	out := make([]domain.UserID, 0, len(f.Targets))
	for _, t := range f.Targets {
		out = append(out, domain.UserID(t))
	}
	return out
}

// Per-frame payloads used for validation only. The read loop copies the
// relevant inboundFrame fields into one of these before dispatching.
type sendInvitePayload struct {
	Targets []string `validate:"required,min=1,dive,required"`
}

type inviteResponsePayload struct {
	Session string `validate:"required"`
}

type sendMessagePayload struct {
	Session string `validate:"required"`
	Content string `validate:"required"`
}

type inviteToGroupPayload struct {
	Session string `validate:"required"`
	User    string `validate:"required"`
}

type sessionPayload struct {
	Session string `validate:"required"`
}

type searchPayload struct {
	Terms string `validate:"required"`
	Limit int    `validate:"gte=0,lte=100"`
}

type outboundFrame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}
