package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionExists = errors.New("session already started")
	ErrSessionClosed = errors.New("session stopped")
)

type ErrorKind int

const (
	KindProvisioning ErrorKind = iota + 1
	KindNegotiation
	KindGather
)

func (k ErrorKind) String() string {
	switch k {
	case KindProvisioning:
		return "provisioning"
	case KindNegotiation:
		return "negotiation"
	case KindGather:
		return "gather"
	default:
		return "unknown"
	}
}

// SessionError carries the failing step of a session next to the backend error that caused it.
type SessionError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func NewSessionError(kind ErrorKind, op string, err error) *SessionError {
	return &SessionError{Kind: kind, Op: op, Err: err}
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// Reason is the message shown to the client: the backend's own wording, without step prefixes.
func (e *SessionError) Reason() string {
	if e.Err == nil {
		return e.Kind.String() + " failed"
	}
	return e.Err.Error()
}

// IsKind reports whether err is a SessionError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *SessionError
	return errors.As(err, &se) && se.Kind == kind
}

// Reason returns a client-facing message for any error returned by a session operation.
func Reason(err error) string {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Reason()
	}
	return err.Error()
}
