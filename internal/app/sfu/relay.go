package sfu

import (
	"context"

	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

// RTPReader is the read side of a remote track.
type RTPReader interface {
	ReadRTP() (*rtp.Packet, error)
}

// Relay pumps packets of one composite input into the composite.
type Relay struct {
	Src    RTPReader
	cancel context.CancelFunc
}

func NewRelay(src RTPReader, cancel context.CancelFunc) *Relay {
	return &Relay{Src: src, cancel: cancel}
}

func (r *Relay) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

// loop reads RTP packets from the source until ctx ends or the track fails.
func (r *Relay) loop(ctx context.Context, emit func(*rtp.Packet), logger *zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done")
			return
		default:
		}
		pkt, err := r.Src.ReadRTP()
		if err != nil {
			logger.Debug().Err(err).Msg("relay read RTP ended")
			return
		}
		emit(pkt)
	}
}
