package kurento

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Mosaic/internal/core"
	"github.com/dkeye/Mosaic/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var (
	_ core.MediaBackend = (*Backend)(nil)
	_ core.Pipeline     = (*pipeline)(nil)
	_ core.Mixer        = (*composite)(nil)
	_ core.Port         = (*hubPort)(nil)
	_ core.Endpoint     = (*webRtcEndpoint)(nil)
)

type Options struct {
	URL          string
	CallTimeout  time.Duration
	Keepalive    time.Duration
	DialAttempts int
	DialWait     time.Duration
}

// Backend connects to the media server on first use and reuses the connection
// until it drops; the next call after a drop dials again. Concurrent callers
// share one dial and each stops waiting when its own context ends.
type Backend struct {
	opts  Options
	dials singleflight.Group

	mu     sync.Mutex
	client *Client
	closed bool
}

func New(opts Options) *Backend {
	if opts.DialAttempts <= 0 {
		opts.DialAttempts = 1
	}
	return &Backend{opts: opts}
}

func (b *Backend) cached() (*Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClientClosed
	}
	if b.client != nil && !b.client.Closed() {
		return b.client, nil
	}
	return nil, nil
}

func (b *Backend) connect(ctx context.Context) (*Client, error) {
	if c, err := b.cached(); c != nil || err != nil {
		return c, err
	}
	ch := b.dials.DoChan("dial", func() (any, error) {
		if c, err := b.cached(); c != nil || err != nil {
			return c, err
		}
		c, err := b.dial(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.closed {
			_ = c.Close()
			return nil, ErrClientClosed
		}
		b.client = c
		return c, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Client), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Backend) dial(ctx context.Context) (*Client, error) {
	var err error
	for attempt := 1; attempt <= b.opts.DialAttempts; attempt++ {
		var c *Client
		c, err = Dial(ctx, b.opts.URL, b.opts.CallTimeout, b.opts.Keepalive)
		if err == nil {
			return c, nil
		}
		log.Warn().Err(err).Str("module", "adapters.kurento").Int("attempt", attempt).Str("url", b.opts.URL).Msg("dial media server")
		if attempt < b.opts.DialAttempts {
			time.Sleep(b.opts.DialWait)
		}
	}
	return nil, fmt.Errorf("could not find media server at address %s: %w", b.opts.URL, err)
}

func (b *Backend) CreatePipeline(ctx context.Context) (core.Pipeline, error) {
	c, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}
	id, err := c.Create(ctx, typeMediaPipeline, nil)
	if err != nil {
		return nil, err
	}
	return &pipeline{c: c, id: id}, nil
}

// Close drops the connection. The backend refuses new pipelines afterwards.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}

type pipeline struct {
	c  *Client
	id string

	mu        sync.Mutex
	endpoints []string
}

func (p *pipeline) ID() string { return p.id }

func (p *pipeline) CreateMixer(ctx context.Context) (core.Mixer, error) {
	id, err := p.c.Create(ctx, typeComposite, map[string]any{"mediaPipeline": p.id})
	if err != nil {
		return nil, err
	}
	return &composite{c: p.c, id: id}, nil
}

// CreateEndpoint also subscribes to the endpoint's candidates so that none
// are lost between creation and the caller registering its callback.
func (p *pipeline) CreateEndpoint(ctx context.Context) (core.Endpoint, error) {
	id, err := p.c.Create(ctx, typeWebRtcEndpoint, map[string]any{"mediaPipeline": p.id})
	if err != nil {
		return nil, err
	}
	ep := &webRtcEndpoint{element: element{c: p.c, id: id}}
	if err := p.c.Subscribe(ctx, id, eventIceCandidateFound, ep.onEvent); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.endpoints = append(p.endpoints, id)
	p.mu.Unlock()
	return ep, nil
}

func (p *pipeline) Release(ctx context.Context) error {
	p.mu.Lock()
	for _, id := range p.endpoints {
		p.c.Unsubscribe(id, eventIceCandidateFound)
	}
	p.endpoints = nil
	p.mu.Unlock()
	return p.c.Release(ctx, p.id)
}

type composite struct {
	c  *Client
	id string
}

func (m *composite) ID() string { return m.id }

func (m *composite) CreatePort(ctx context.Context) (core.Port, error) {
	id, err := m.c.Create(ctx, typeHubPort, map[string]any{"hub": m.id})
	if err != nil {
		return nil, err
	}
	return &hubPort{element{c: m.c, id: id}}, nil
}

type element struct {
	c  *Client
	id string
}

func (e element) ID() string { return e.id }

func (e element) Connect(ctx context.Context, sink core.MediaElement) error {
	_, err := e.c.Invoke(ctx, e.id, "connect", map[string]any{"sink": sink.ID()})
	return err
}

type hubPort struct {
	element
}

type webRtcEndpoint struct {
	element

	mu    sync.Mutex
	onICE func(domain.IceCandidate)
}

func (e *webRtcEndpoint) ProcessOffer(ctx context.Context, offer string) (string, error) {
	raw, err := e.c.Invoke(ctx, e.id, "processOffer", map[string]any{"offer": offer})
	if err != nil {
		return "", err
	}
	var answer string
	if err := json.Unmarshal(raw, &answer); err != nil {
		return "", fmt.Errorf("processOffer: bad answer: %w", err)
	}
	return answer, nil
}

func (e *webRtcEndpoint) GatherCandidates(ctx context.Context) error {
	_, err := e.c.Invoke(ctx, e.id, "gatherCandidates", nil)
	return err
}

func (e *webRtcEndpoint) AddIceCandidate(ctx context.Context, c domain.IceCandidate) error {
	_, err := e.c.Invoke(ctx, e.id, "addIceCandidate", map[string]any{"candidate": toWire(c)})
	return err
}

func (e *webRtcEndpoint) OnIceCandidate(fn func(domain.IceCandidate)) {
	e.mu.Lock()
	e.onICE = fn
	e.mu.Unlock()
}

func (e *webRtcEndpoint) onEvent(data json.RawMessage) {
	var ev iceCandidateFound
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Warn().Err(err).Str("module", "adapters.kurento").Str("endpoint", e.id).Msg("bad IceCandidateFound")
		return
	}
	e.mu.Lock()
	fn := e.onICE
	e.mu.Unlock()
	if fn != nil {
		fn(ev.Candidate.toDomain())
	}
}
