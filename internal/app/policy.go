package app

import "github.com/dkeye/Mosaic/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	StopSession
)

// Policy decides what happens to a session whose client stopped draining its outbound buffer.
type Policy interface {
	OnBackPressure(sid domain.SessionID, message string) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(_ domain.SessionID, message string) BackpressureAction {
	if message == "error" {
		return DropFrame
	}
	return StopSession
}
