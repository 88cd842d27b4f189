package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-core/contract"
	"chat-core/domain/event"
	"chat-core/observability"
)

// Ensure *EventFanout implements the contract.Worker interface at compile
// time, so architectural mismatches surface here and not in other packages.
var _ contract.Worker = (*EventFanout)(nil)

// EventFanout drains the envelope channel and delivers each event to the
// permanent sinks and to every live connection of its recipients.
//
// It is a single worker on purpose: one consumer keeps the per-session
// append order intact end to end. Delivery is best-effort with a per-sink
// timeout; a slow or closed sink is skipped and counted, never retried.
// Durable history is the recovery path for skipped recipients.
type EventFanout struct {
	log         *slog.Logger
	envelopes   chan event.Envelope
	presence    contract.IPresence
	permanent   []contract.EventSink
	sinkTimeout time.Duration
	stats       *observability.Manager
}

func NewEventFanout(log *slog.Logger, envelopes chan event.Envelope, presence contract.IPresence,
	permanent []contract.EventSink, sinkTimeout time.Duration, stats *observability.Manager) *EventFanout {
	return &EventFanout{
		log:         log,
		envelopes:   envelopes,
		presence:    presence,
		permanent:   permanent,
		sinkTimeout: sinkTimeout,
		stats:       stats,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		case env, ok := <-w.envelopes:
			if !ok {
				w.log.Debug("Envelope channel closed")
				return nil
			}
			w.Fanout(ctx, env)
		}
	}
}

// Fanout delivers one envelope: permanent sinks first (persistence before
// live delivery), then each recipient's connections.
func (w *EventFanout) Fanout(ctx context.Context, env event.Envelope) {
	for _, sink := range w.permanent {
		w.consume(ctx, sink, env.Event)
	}
	for _, recipient := range env.Recipients {
		for _, sink := range w.presence.Route(recipient) {
			w.consume(ctx, sink, env.Event)
		}
	}
}

func (w *EventFanout) consume(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) {
	timeoutCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()

	if err := sink.Consume(timeoutCtx, evt); err != nil {
		w.stats.IncrDeliveryFailures()
		w.log.Warn("Sink delivery failed", "event", evt.Name(), "err", err)
		return
	}
	w.stats.IncrEventsDelivered()
}
