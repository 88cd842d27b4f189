package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event.
// Seq is a per-session monotonic sequence assigned at append time; it is the
// ordering authority, SentAt is informational only.
type Message struct {
	ID      uuid.UUID `json:"id"`
	Session SessionID `json:"session_id"`
	Sender  UserID    `json:"sender"`
	Content string    `json:"content"`
	Seq     uint64    `json:"seq"`
	SentAt  time.Time `json:"sent_at"`
}
