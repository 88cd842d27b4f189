// Package router validates and appends outbound messages, then fans them
// out to the session's online participants in append order.
package router

import (
	"log/slog"

	"chat-core/contract"
	"chat-core/domain"
	"chat-core/domain/event"
	"chat-core/observability"
	"chat-core/store"
)

type Router struct {
	log     *slog.Logger
	store   *store.Store
	emitter contract.Emitter
	stats   *observability.Manager
}

func NewRouter(log *slog.Logger, sessions *store.Store, emitter contract.Emitter, stats *observability.Manager) *Router {
	return &Router{log: log, store: sessions, emitter: emitter, stats: stats}
}

// Send appends the message and enqueues its fan-out while the session lock
// is still held, so two racing senders cannot publish out of log order.
// Delivery targets every active participant, sender included; offline ones
// are simply skipped downstream, history is their recovery path.
func (r *Router) Send(sender domain.UserID, session domain.SessionID, content string) (domain.Message, error) {
	msg, err := r.store.AppendMessage(session, sender, content,
		func(msg domain.Message, participants []domain.UserID) {
			r.emitter.Emit(event.Envelope{
				Recipients: participants,
				Event:      event.NewMessage{Session: session, Message: msg},
			})
		})
	if err != nil {
		return domain.Message{}, err
	}
	r.stats.IncrMessagesRouted()
	r.log.Debug("Message routed", "session", session, "sender", sender, "seq", msg.Seq)
	return msg, nil
}
