package sfu

import (
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// sink is the composite output as written to one endpoint.
type sink struct {
	track   *webrtc.TrackLocalStaticRTP
	closed  atomic.Bool
	written atomic.Uint64
}

func newSink(track *webrtc.TrackLocalStaticRTP) *sink {
	return &sink{track: track}
}

// write reports false once the sink is closed or its track rejected a packet.
func (s *sink) write(pkt *rtp.Packet) (bool, error) {
	if s.closed.Load() {
		return false, nil
	}
	if err := s.track.WriteRTP(pkt); err != nil {
		s.closed.Store(true)
		return false, err
	}
	s.written.Add(1)
	return true, nil
}

func (s *sink) close() { s.closed.Store(true) }
