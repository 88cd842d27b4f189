// Package runtime wires the presence, session, invitation and routing
// components together and runs the delivery pipeline. It orchestrates the
// system without containing domain rules.
package runtime

import (
	"context"
	"log/slog"
	"time"

	"chat-core/contract"
	"chat-core/domain/event"
	"chat-core/invite"
	"chat-core/membership"
	"chat-core/observability"
	"chat-core/presence"
	"chat-core/projection"
	"chat-core/repositories"
	"chat-core/router"
	"chat-core/runtime/workers"
	"chat-core/store"
)

type Orchestrator struct {
	log         *slog.Logger
	supervisor  contract.ISupervisor
	envelopes   chan event.Envelope
	sinkTimeout time.Duration

	Presence *presence.Registry
	Store    *store.Store
	Invites  *invite.Manager
	Members  *membership.Coordinator
	Router   *router.Router
	Timeline *projection.Timeline
	Stats    *observability.Manager

	permanentSinks []contract.EventSink
}

// NewOrchestrator builds the component graph. The persistence collaborator
// may be the badger store or the in-memory variant; extra permanent sinks
// (search index, test probes) are appended as-is.
func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	friendGraph contract.FriendGraph, persistence contract.Persistence,
	bufferSize int, sinkTimeout time.Duration, extraSinks ...contract.EventSink) *Orchestrator {

	o := &Orchestrator{
		log:         log,
		supervisor:  supervisor,
		envelopes:   make(chan event.Envelope, bufferSize),
		sinkTimeout: sinkTimeout,
		Stats:       observability.NewManager(),
		Timeline:    projection.NewTimeline(),
	}

	o.Store = store.NewStore(log)
	o.Presence = presence.NewRegistry(log, friendGraph, o)
	o.Members = membership.NewCoordinator(log, o.Store, o)
	o.Invites = invite.NewManager(log, friendGraph, o.Presence, o.Store, o.Members, o)
	o.Router = router.NewRouter(log, o.Store, o, o.Stats)

	o.permanentSinks = append([]contract.EventSink{
		o.Timeline,
		repositories.NewDiskSink(persistence, log),
	}, extraSinks...)
	return o
}

// Emit enqueues an envelope for the fanout worker. The channel is the only
// ordering boundary between components and delivery, so the send blocks
// instead of dropping when the buffer is full.
func (o *Orchestrator) Emit(env event.Envelope) {
	if env.Event == nil {
		return
	}
	o.envelopes <- env
	if _, ok := env.Event.(event.FriendStatus); ok {
		o.Stats.IncrPresenceTransitions()
	}
}

// Start registers the pipeline workers and runs the supervisor. It blocks
// until the context is canceled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context, metricInterval time.Duration) {
	fanout := workers.NewEventFanout(o.log, o.envelopes, o.Presence, o.permanentSinks, o.sinkTimeout, o.Stats)
	o.supervisor.Add(fanout)
	if metricInterval > 0 {
		o.supervisor.Add(workers.NewHealthWorker(o.log, o.Stats, metricInterval))
	}

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
}

// Stop initiates a graceful shutdown: workers observe the canceled context
// and drain.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
