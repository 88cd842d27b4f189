package errors

import "fmt"

// Expected, recoverable rejections of the chat protocol. They are reported
// synchronously to the caller and never crash a connection or the process.
var (
	ErrNotFriend        = fmt.Errorf("target is not a friend of the inviter")
	ErrTargetOffline    = fmt.Errorf("invite target is offline")
	ErrDuplicateSession = fmt.Errorf("a group session with these participants already exists")
	ErrInviteNotFound   = fmt.Errorf("no pending invite for this session")
	ErrNotParticipant   = fmt.Errorf("user is not an active participant")
	ErrAlreadyActive    = fmt.Errorf("user already joined this session")
	ErrSessionNotFound  = fmt.Errorf("session not found")
)

// Infrastructure failures.
var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrConnectionClosed = fmt.Errorf("connection closed")
)
