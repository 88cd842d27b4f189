package domain

import (
	"time"
)

type SessionID string

type SessionType string

const (
	DirectSession SessionType = "direct"
	GroupSession  SessionType = "group"
)

// SessionState follows Pending -> Active -> Retired.
// A direct session activates on the single accept; a retired session keeps
// its history but never accepts members or messages again, and its id is
// never reused.
type SessionState string

const (
	SessionPending SessionState = "pending"
	SessionActive  SessionState = "active"
	SessionRetired SessionState = "retired"
)

// Session is the canonical chat entity: active membership plus the ordered
// message log. Mutation goes through the session store only.
type Session struct {
	ID           SessionID
	Type         SessionType
	State        SessionState
	Participants []UserID // active members, join order preserved
	Expected     []UserID // inviter + invited targets, used for group dedup
	Messages     []Message
	NextSeq      uint64
	CreatedAt    time.Time
}

// IsParticipant reports whether user is an active member.
func (s *Session) IsParticipant(user UserID) bool {
	for _, p := range s.Participants {
		if p == user {
			return true
		}
	}
	return false
}

// LastMessage returns the highest-sequence message, or nil on an empty log.
func (s *Session) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// SameMembers compares two participant sets order-independently.
func SameMembers(a, b []UserID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[UserID]struct{}, len(a))
	for _, u := range a {
		set[u] = struct{}{}
	}
	for _, u := range b {
		if _, ok := set[u]; !ok {
			return false
		}
	}
	return true
}

// SessionRecord is the persistence snapshot of a session, without the log.
// Messages are persisted individually by sequence.
type SessionRecord struct {
	ID           SessionID
	Type         SessionType
	State        SessionState
	Participants []UserID
	CreatedAt    time.Time
}
