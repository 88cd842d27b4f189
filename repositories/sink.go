package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"chat-core/contract"
	"chat-core/domain/event"
)

// DiskSink bridges the event pipeline to the Persistence collaborator:
// messages are persisted as they are routed, session snapshots on every
// membership change. A delivery skip never loses data because the sink runs
// on the same pipeline as live fan-out.
type DiskSink struct {
	persistence contract.Persistence
	log         *slog.Logger
}

func NewDiskSink(persistence contract.Persistence, log *slog.Logger) DiskSink {
	return DiskSink{persistence: persistence, log: log}
}

func (d DiskSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.NewMessage:
		return d.persistence.SaveMessage(evt.Message)
	case event.SessionChanged:
		return d.persistence.SaveSession(evt.Record)
	default:
		d.log.Debug(fmt.Sprintf("Event not persisted : %s", e.Name()))
		return nil
	}
}
