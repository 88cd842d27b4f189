package domain

import "time"

// PendingInvite is owned by the invitee until accepted, declined or
// invalidated. At most one invite per (invitee, session) pair exists.
type PendingInvite struct {
	From         UserID    `json:"from"`
	Session      SessionID `json:"session_id"`
	IsGroup      bool      `json:"is_group"`
	Participants []UserID  `json:"participants"` // snapshot of inviter + targets at creation
	CreatedAt    time.Time `json:"created_at"`
}
