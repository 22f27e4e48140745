// Package domain contains entity without logic, just meta-data
package domain

import (
	"github.com/google/uuid"
)

// SessionID identifies one signaling connection and the presenter session bound to it.
type SessionID string

func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

type State int32

const (
	StateEmpty State = iota
	StateProvisioning
	StateNegotiating
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateProvisioning:
		return "provisioning"
	case StateNegotiating:
		return "negotiating"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Next reports whether a session in s may move to next.
// Closed is reachable from every non-empty state; everything else only moves forward by one.
func (s State) Next(next State) bool {
	if s == StateClosed {
		return false
	}
	if next == StateClosed {
		return s != StateEmpty
	}
	return next == s+1
}
