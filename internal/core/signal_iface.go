package core

//go:generate mockgen -destination=mocks/mock_outbound.go -package=mocks github.com/dkeye/Mosaic/internal/core Outbound

import (
	"errors"

	"github.com/dkeye/Mosaic/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Frame is a raw binary payload.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Outbound is what a session uses to talk back to its client.
// It is a reference to the connection, not ownership of it.
type Outbound interface {
	Accept(answers []string) error
	Reject(reason string) error
	IceCandidate(index int, c domain.IceCandidate) error
	StopCommunication() error
	Error(message string) error
}
