package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Mosaic/internal/app/sfu"
	"github.com/dkeye/Mosaic/internal/core"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	_ core.MediaBackend = (*Backend)(nil)
	_ core.Pipeline     = (*pipeline)(nil)
	_ core.Mixer        = (*mixer)(nil)
	_ core.Port         = (*hubPort)(nil)
	_ core.Endpoint     = (*endpoint)(nil)
)

var errReleased = errors.New("loopback: pipeline released")

// Backend is an in-process media backend built on pion. The composite does not
// mix: it forwards the first live presenter stream to every endpoint.
type Backend struct {
	api *webrtc.API
	cfg webrtc.Configuration
}

func DefaultWebRTCConfig(stunURLs []string) webrtc.Configuration {
	if len(stunURLs) == 0 {
		return webrtc.Configuration{}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunURLs}},
	}
}

func NewBackend(cfg webrtc.Configuration) (*Backend, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		PayloadType:        96,
	}, webrtc.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("register vp8: %w", err)
	}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		PayloadType:        111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register opus: %w", err)
	}

	se := webrtc.SettingEngine{}
	se.LoggerFactory = LoggerFactory{Base: log.Logger}

	return &Backend{
		api: webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(se)),
		cfg: cfg,
	}, nil
}

func (b *Backend) CreatePipeline(context.Context) (core.Pipeline, error) {
	id := "pipeline-" + uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	log.Info().Str("module", "adapters.rtc").Str("pipeline", id).Msg("pipeline created")
	return &pipeline{b: b, id: id, ctx: ctx, cancel: cancel}, nil
}

func (b *Backend) Close() error { return nil }

type pipeline struct {
	b      *Backend
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	seq    atomic.Int64

	mu        sync.Mutex
	released  bool
	mixers    []*mixer
	endpoints []*endpoint
}

func (p *pipeline) ID() string { return p.id }

func (p *pipeline) nextID(kind string) string {
	return fmt.Sprintf("%s/%s-%d", p.id, kind, p.seq.Add(1))
}

func (p *pipeline) CreateMixer(context.Context) (core.Mixer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil, errReleased
	}
	id := p.nextID("composite")
	m := &mixer{p: p, id: id, composite: sfu.NewComposite(id)}
	p.mixers = append(p.mixers, m)
	return m, nil
}

func (p *pipeline) CreateEndpoint(context.Context) (core.Endpoint, error) {
	pc, err := p.b.api.NewPeerConnection(p.b.cfg)
	if err != nil {
		return nil, err
	}
	id := p.nextID("endpoint")
	ep := newEndpoint(p.ctx, id, pc, log.With().Str("module", "webrtc").Str("endpoint", id).Logger())

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		ep.Close()
		return nil, errReleased
	}
	p.endpoints = append(p.endpoints, ep)
	return ep, nil
}

// Release closes every PeerConnection and composite created in the pipeline.
func (p *pipeline) Release(context.Context) error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return nil
	}
	p.released = true
	endpoints, mixers := p.endpoints, p.mixers
	p.endpoints, p.mixers = nil, nil
	p.mu.Unlock()

	p.cancel()
	for _, ep := range endpoints {
		ep.Close()
	}
	for _, m := range mixers {
		m.composite.Stop()
	}
	log.Info().Str("module", "adapters.rtc").Str("pipeline", p.id).Int("endpoints", len(endpoints)).Msg("pipeline released")
	return nil
}

type mixer struct {
	p         *pipeline
	id        string
	composite *sfu.Composite
}

func (m *mixer) ID() string { return m.id }

func (m *mixer) CreatePort(context.Context) (core.Port, error) {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	if m.p.released {
		return nil, errReleased
	}
	return &hubPort{id: m.p.nextID("hubport"), composite: m.composite}, nil
}

type hubPort struct {
	id        string
	composite *sfu.Composite
}

func (h *hubPort) ID() string { return h.id }

// Connect sends the composite output to an endpoint.
func (h *hubPort) Connect(_ context.Context, sink core.MediaElement) error {
	ep, ok := sink.(*endpoint)
	if !ok {
		return errForeignElement
	}
	return ep.attachOutput(h.composite)
}
