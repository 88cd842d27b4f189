// Package domain contains core concepts of the presence and chat system.
// No runtime, network, or UI logic should be added here.
package domain

// UserID is the stable identity of a person, independent of any connection.
// It is created at account registration (external) and never mutated here.
type UserID string

// ConnectionID identifies one live network channel bound to a single user.
// A user may hold several connections at once; presence is derived from them.
type ConnectionID string
