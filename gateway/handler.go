package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"chat-core/contract"
	"chat-core/domain"
	cherr "chat-core/errors"
	"chat-core/services"
	"chat-core/store"
)

const defaultReadTimeout = 60 * time.Second

var validate = validator.New()

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler owns the websocket endpoint. Each accepted socket becomes one
// presence connection: frames coming in are protocol commands, frames going
// out are domain events addressed to the user.
type Handler struct {
	log              *slog.Logger
	service          services.IChatService
	identity         contract.IdentityProvider
	sendBufferSize   int
	maxContentLength int
	searchLimit      int
}

func NewHandler(log *slog.Logger, service services.IChatService, identity contract.IdentityProvider,
	sendBufferSize, maxContentLength int) *Handler {
	return &Handler{
		log:              log,
		service:          service,
		identity:         identity,
		sendBufferSize:   sendBufferSize,
		maxContentLength: maxContentLength,
		searchLimit:      20,
	}
}

// RegisterRoutes mounts the websocket endpoint on the gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.Handle())
}

// Handle authenticates the caller, upgrades to websocket and processes
// frames until the client disconnects.
func (h *Handler) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = c.GetHeader("Authorization")
		}
		user, err := h.identity.Identify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; nothing more to send.
			h.log.Warn("Websocket upgrade failed", slog.String("error", err.Error()))
			return
		}

		conn := NewConnection(user, ws, h.sendBufferSize)
		conn.Start()
		h.service.Connect(user, conn.ID, conn)
		h.log.Info("Connection opened",
			slog.String("user", string(user)), slog.String("connection", string(conn.ID)))

		defer func() {
			h.service.Disconnect(conn.ID)
			conn.Close(websocket.CloseNormalClosure, "session closed")
			h.log.Info("Connection closed",
				slog.String("user", string(user)), slog.String("connection", string(conn.ID)))
		}()

		ws.SetReadLimit(1 << 20)
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		h.reply(conn, "connected", gin.H{"user": user})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure,
					websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
					errors.Is(err, websocket.ErrCloseSent) {
					return
				}
				h.replyError(conn, "read_error", err.Error())
				return
			}

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				h.replyError(conn, "bad_request", "invalid payload")
				continue
			}
			h.dispatch(c, conn, user, frame)
		}
	}
}

func (h *Handler) dispatch(c *gin.Context, conn *Connection, user domain.UserID, frame inboundFrame) {
	switch frame.Type {
	case frameSendInvite:
		h.handleSendInvite(conn, user, frame)
	case frameInviteResponse:
		h.handleInviteResponse(conn, user, frame)
	case frameSendMessage:
		h.handleSendMessage(conn, user, frame)
	case frameInviteToGroup:
		h.handleInviteToGroup(conn, user, frame)
	case frameLeaveChat:
		h.handleLeaveChat(conn, user, frame)
	case frameListChats:
		h.reply(conn, "chats", summariesView(h.service.ListChats(user)))
	case frameGetChat:
		h.handleGetChat(conn, user, frame)
	case framePendingInvites:
		h.reply(conn, "pending_invites", h.service.PendingInvites(user))
	case frameSearchMessages:
		h.handleSearch(c, conn, user, frame)
	case framePing:
		h.reply(conn, "pong", nil)
	default:
		h.replyError(conn, "unsupported_type", "unknown frame type")
	}
}

func (h *Handler) handleSendInvite(conn *Connection, user domain.UserID, frame inboundFrame) {
	if err := validate.Struct(sendInvitePayload{Targets: frame.Targets}); err != nil {
		h.replyError(conn, "bad_request", err.Error())
		return
	}
	result, err := h.service.SendInvite(user, frame.targetIDs(), frame.IsGroup)
	if err != nil {
		h.replyBusinessError(conn, err)
		return
	}
	h.reply(conn, "invite_sent", gin.H{"session": result.Session, "existing": result.Existing})
}

func (h *Handler) handleInviteResponse(conn *Connection, user domain.UserID, frame inboundFrame) {
	if err := validate.Struct(inviteResponsePayload{Session: frame.Session}); err != nil {
		h.replyError(conn, "bad_request", err.Error())
		return
	}
	if err := h.service.RespondInvite(user, frame.sessionID(), frame.Accept); err != nil {
		h.replyBusinessError(conn, err)
	}
}

func (h *Handler) handleSendMessage(conn *Connection, user domain.UserID, frame inboundFrame) {
	if err := validate.Struct(sendMessagePayload{Session: frame.Session, Content: frame.Content}); err != nil {
		h.replyError(conn, "bad_request", err.Error())
		return
	}
	if h.maxContentLength > 0 && len(frame.Content) > h.maxContentLength {
		h.replyError(conn, "bad_request", "message content too long")
		return
	}
	msg, err := h.service.SendMessage(user, frame.sessionID(), frame.Content)
	if err != nil {
		h.replyBusinessError(conn, err)
		return
	}
	h.reply(conn, "message_sent", gin.H{"id": msg.ID, "session": msg.Session, "seq": msg.Seq})
}

func (h *Handler) handleInviteToGroup(conn *Connection, user domain.UserID, frame inboundFrame) {
	if err := validate.Struct(inviteToGroupPayload{Session: frame.Session, User: frame.User}); err != nil {
		h.replyError(conn, "bad_request", err.Error())
		return
	}
	if err := h.service.InviteToGroup(user, frame.sessionID(), domain.UserID(frame.User)); err != nil {
		h.replyBusinessError(conn, err)
	}
}

func (h *Handler) handleLeaveChat(conn *Connection, user domain.UserID, frame inboundFrame) {
	if err := validate.Struct(sessionPayload{Session: frame.Session}); err != nil {
		h.replyError(conn, "bad_request", err.Error())
		return
	}
	if err := h.service.LeaveChat(user, frame.sessionID()); err != nil {
		h.replyBusinessError(conn, err)
		return
	}
	h.reply(conn, "left_chat", gin.H{"session": frame.Session})
}

func (h *Handler) handleGetChat(conn *Connection, user domain.UserID, frame inboundFrame) {
	if err := validate.Struct(sessionPayload{Session: frame.Session}); err != nil {
		h.replyError(conn, "bad_request", err.Error())
		return
	}
	snap, err := h.service.GetChat(user, frame.sessionID())
	if err != nil {
		h.replyBusinessError(conn, err)
		return
	}
	h.reply(conn, "chat", snapshotView(snap))
}

func (h *Handler) handleSearch(c *gin.Context, conn *Connection, user domain.UserID, frame inboundFrame) {
	if err := validate.Struct(searchPayload{Terms: frame.Terms, Limit: frame.Limit}); err != nil {
		h.replyError(conn, "bad_request", err.Error())
		return
	}
	limit := frame.Limit
	if limit == 0 {
		limit = h.searchLimit
	}
	hits, err := h.service.SearchMessages(c.Request.Context(), user, frame.Terms, frame.sessionID(), limit)
	if err != nil {
		h.replyBusinessError(conn, err)
		return
	}
	h.reply(conn, "search_results", hits)
}

func (h *Handler) reply(conn *Connection, frameType string, data any) {
	payload, err := json.Marshal(outboundFrame{Type: frameType, Data: data})
	if err != nil {
		h.log.Error("Marshalling reply frame", slog.String("type", frameType), slog.String("error", err.Error()))
		return
	}
	_ = conn.Send(payload)
}

func (h *Handler) replyError(conn *Connection, code, msg string) {
	payload, err := json.Marshal(errorFrame{Type: "error", Code: code, Error: msg})
	if err != nil {
		return
	}
	_ = conn.Send(payload)
}

// replyBusinessError maps protocol rejections to stable error codes so
// clients can branch without parsing messages.
func (h *Handler) replyBusinessError(conn *Connection, err error) {
	code := "internal_error"
	switch {
	case errors.Is(err, cherr.ErrNotFriend):
		code = "not_friend"
	case errors.Is(err, cherr.ErrTargetOffline):
		code = "target_offline"
	case errors.Is(err, cherr.ErrDuplicateSession):
		code = "duplicate_session"
	case errors.Is(err, cherr.ErrInviteNotFound):
		code = "invite_not_found"
	case errors.Is(err, cherr.ErrNotParticipant):
		code = "not_participant"
	case errors.Is(err, cherr.ErrAlreadyActive):
		code = "already_active"
	case errors.Is(err, cherr.ErrSessionNotFound):
		code = "session_not_found"
	}
	h.replyError(conn, code, err.Error())
}

type chatSummaryView struct {
	Session      domain.SessionID   `json:"session"`
	Type         domain.SessionType `json:"type"`
	Participants []domain.UserID    `json:"participants"`
	LastMessage  *domain.Message    `json:"last_message,omitempty"`
}

func summariesView(summaries []store.Summary) []chatSummaryView {
	out := make([]chatSummaryView, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, chatSummaryView{
			Session:      s.ID,
			Type:         s.Type,
			Participants: s.Participants,
			LastMessage:  s.LastMessage,
		})
	}
	return out
}

type chatView struct {
	Session      domain.SessionID    `json:"session"`
	Type         domain.SessionType  `json:"type"`
	State        domain.SessionState `json:"state"`
	Participants []domain.UserID     `json:"participants"`
	Messages     []domain.Message    `json:"messages"`
}

func snapshotView(s store.Snapshot) chatView {
	return chatView{
		Session:      s.ID,
		Type:         s.Type,
		State:        s.State,
		Participants: s.Participants,
		Messages:     s.Messages,
	}
}
