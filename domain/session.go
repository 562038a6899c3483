// Package domain contains the core concepts of the hrdesk client.
// This file defines the session lifecycle states and the snapshot
// handed to subscribers. Snapshots are immutable by convention.
package domain

// Credential is the opaque bearer token authorizing API calls.
// It is tenant-scoped server-side; the client never interprets it
// beyond the unverified tenant hint (see package auth).
type Credential string

// SessionState enumerates the states of the client session machine.
type SessionState int

const (
	StateIdle SessionState = iota
	StateChecking
	StateAuthenticated
	StateSigningOut
	StateUnauthenticated
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateChecking:
		return "Checking"
	case StateAuthenticated:
		return "Authenticated"
	case StateSigningOut:
		return "SigningOut"
	case StateUnauthenticated:
		return "Unauthenticated"
	default:
		return "Unknown"
	}
}

// Session is the snapshot observed by screens. User is non-nil only in
// StateAuthenticated. Err carries the last terminal error, if any.
type Session struct {
	State SessionState
	User  *User
	Err   error
}
