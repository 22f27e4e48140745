package rtc

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/Mosaic/internal/app/sfu"
	"github.com/dkeye/Mosaic/internal/core"
	"github.com/dkeye/Mosaic/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

var errForeignElement = errors.New("loopback: element belongs to another pipeline")

// endpoint is a WebRTC endpoint backed by a pion PeerConnection.
// Local candidates are held back until GatherCandidates, and remote candidates
// until the offer has been applied.
type endpoint struct {
	id        string
	pc        *webrtc.PeerConnection
	composite *sfu.Composite
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	source    string
	output    *sfu.Composite
	onICE     func(domain.IceCandidate)
	gathering bool
	local     []domain.IceCandidate
	hasRemote bool
	remote    []webrtc.ICECandidateInit
}

type trackReader struct {
	t *webrtc.TrackRemote
}

func (r trackReader) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := r.t.ReadRTP()
	return pkt, err
}

func newEndpoint(ctx context.Context, id string, pc *webrtc.PeerConnection, logger zerolog.Logger) *endpoint {
	ctx, cancel := context.WithCancel(ctx)
	e := &endpoint{id: id, pc: pc, logger: logger, ctx: ctx, cancel: cancel}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		e.logger.Info().Str("ice_state", s.String()).Msg("ICE state")
	})

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		e.emit(fromInit(cand.ToJSON()))
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		e.logger.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		if track.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		e.mu.Lock()
		src, c := e.source, e.composite
		e.mu.Unlock()
		if src == "" || c == nil {
			e.logger.Warn().Msg("track without a hub port, dropping")
			return
		}
		c.StartRelay(e.ctx, src, trackReader{t: track})
	})
	return e
}

func (e *endpoint) ID() string { return e.id }

// Connect feeds this endpoint's inbound media into a hub port.
func (e *endpoint) Connect(_ context.Context, sink core.MediaElement) error {
	port, ok := sink.(*hubPort)
	if !ok {
		return errForeignElement
	}
	e.mu.Lock()
	e.source = port.id
	e.composite = port.composite
	e.mu.Unlock()
	return nil
}

func (e *endpoint) ProcessOffer(_ context.Context, offer string) (string, error) {
	if err := e.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer}); err != nil {
		return "", err
	}

	e.mu.Lock()
	e.hasRemote = true
	pending := e.remote
	e.remote = nil
	e.mu.Unlock()
	for _, c := range pending {
		if err := e.pc.AddICECandidate(c); err != nil {
			e.logger.Warn().Err(err).Msg("apply buffered candidate")
		}
	}

	answer, err := e.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := e.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	return e.pc.LocalDescription().SDP, nil
}

func (e *endpoint) GatherCandidates(context.Context) error {
	e.mu.Lock()
	e.gathering = true
	found := e.local
	e.local = nil
	fn := e.onICE
	e.mu.Unlock()
	if fn != nil {
		for _, c := range found {
			fn(c)
		}
	}
	return nil
}

func (e *endpoint) emit(c domain.IceCandidate) {
	e.mu.Lock()
	if !e.gathering || e.onICE == nil {
		e.local = append(e.local, c)
		e.mu.Unlock()
		return
	}
	fn := e.onICE
	e.mu.Unlock()
	fn(c)
}

func (e *endpoint) AddIceCandidate(_ context.Context, c domain.IceCandidate) error {
	init := toInit(c)
	e.mu.Lock()
	if !e.hasRemote {
		e.remote = append(e.remote, init)
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()
	return e.pc.AddICECandidate(init)
}

func (e *endpoint) OnIceCandidate(fn func(domain.IceCandidate)) {
	e.mu.Lock()
	e.onICE = fn
	e.mu.Unlock()
}

// attachOutput adds the composite output track to the PeerConnection.
func (e *endpoint) attachOutput(c *sfu.Composite) error {
	track, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}, "video", "composite")
	if err != nil {
		return err
	}
	if _, err := e.pc.AddTrack(track); err != nil {
		return err
	}
	c.AddSink(e.id, track)
	e.mu.Lock()
	e.output = c
	e.mu.Unlock()
	return nil
}

func (e *endpoint) Close() {
	e.cancel()
	e.mu.Lock()
	src, in, out := e.source, e.composite, e.output
	e.mu.Unlock()
	if in != nil && src != "" {
		in.StopRelay(src)
	}
	if out != nil {
		out.RemoveSink(e.id)
	}
	if err := e.pc.Close(); err != nil {
		e.logger.Error().Err(err).Msg("close error")
		return
	}
	e.logger.Info().Msg("closed")
}

func toInit(c domain.IceCandidate) webrtc.ICECandidateInit {
	mid := c.SDPMid
	idx := c.SDPMLineIndex
	return webrtc.ICECandidateInit{Candidate: c.Candidate, SDPMid: &mid, SDPMLineIndex: &idx}
}

func fromInit(ci webrtc.ICECandidateInit) domain.IceCandidate {
	c := domain.IceCandidate{Candidate: ci.Candidate}
	if ci.SDPMid != nil {
		c.SDPMid = *ci.SDPMid
	}
	if ci.SDPMLineIndex != nil {
		c.SDPMLineIndex = *ci.SDPMLineIndex
	}
	return c
}
