// Package coretest provides an in-memory core.MediaBackend for tests.
// Every hook is optional; a nil hook succeeds immediately.
package coretest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Mosaic/internal/core"
	"github.com/dkeye/Mosaic/internal/domain"
)

var (
	_ core.MediaBackend = (*Backend)(nil)
	_ core.Pipeline     = (*Pipeline)(nil)
	_ core.Mixer        = (*Mixer)(nil)
	_ core.Port         = (*Port)(nil)
	_ core.Endpoint     = (*Endpoint)(nil)
)

type Backend struct {
	CreatePipelineFn func(ctx context.Context) error
	CreateMixerFn    func(ctx context.Context) error
	// CreatePortFn receives the 1-based number of the port on its mixer.
	CreatePortFn func(ctx context.Context, n int) error
	// CreateEndpointFn receives the 1-based number of the endpoint in its pipeline.
	CreateEndpointFn func(ctx context.Context, n int) error
	ConnectFn        func(ctx context.Context, src, sink string) error
	ProcessOfferFn   func(ctx context.Context, offer string) (string, error)
	GatherFn         func(ctx context.Context, ep *Endpoint) error
	AddCandidateFn   func(ctx context.Context, ep *Endpoint, c domain.IceCandidate) error
	ReleaseFn        func(ctx context.Context, p *Pipeline) error

	seq atomic.Int64

	mu        sync.Mutex
	pipelines []*Pipeline
	closed    bool
}

func (b *Backend) nextID(kind string) string {
	return fmt.Sprintf("%s-%d", kind, b.seq.Add(1))
}

func (b *Backend) CreatePipeline(ctx context.Context) (core.Pipeline, error) {
	if b.CreatePipelineFn != nil {
		if err := b.CreatePipelineFn(ctx); err != nil {
			return nil, err
		}
	}
	p := &Pipeline{b: b, id: b.nextID("pipeline")}
	b.mu.Lock()
	b.pipelines = append(b.pipelines, p)
	b.mu.Unlock()
	return p, nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Backend) Pipelines() []*Pipeline {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Pipeline(nil), b.pipelines...)
}

type Pipeline struct {
	b  *Backend
	id string

	mu        sync.Mutex
	endpoints []*Endpoint
	mixers    []*Mixer
	released  int
}

func (p *Pipeline) ID() string { return p.id }

func (p *Pipeline) CreateMixer(ctx context.Context) (core.Mixer, error) {
	if p.b.CreateMixerFn != nil {
		if err := p.b.CreateMixerFn(ctx); err != nil {
			return nil, err
		}
	}
	m := &Mixer{p: p, id: p.b.nextID("composite")}
	p.mu.Lock()
	p.mixers = append(p.mixers, m)
	p.mu.Unlock()
	return m, nil
}

func (p *Pipeline) CreateEndpoint(ctx context.Context) (core.Endpoint, error) {
	p.mu.Lock()
	n := len(p.endpoints) + 1
	ep := &Endpoint{p: p, id: p.b.nextID("endpoint")}
	p.endpoints = append(p.endpoints, ep)
	p.mu.Unlock()
	if p.b.CreateEndpointFn != nil {
		if err := p.b.CreateEndpointFn(ctx, n); err != nil {
			return nil, err
		}
	}
	return ep, nil
}

func (p *Pipeline) Release(ctx context.Context) error {
	p.mu.Lock()
	p.released++
	p.mu.Unlock()
	if p.b.ReleaseFn != nil {
		return p.b.ReleaseFn(ctx, p)
	}
	return nil
}

// Released reports how many times Release was called.
func (p *Pipeline) Released() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

func (p *Pipeline) Endpoints() []*Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Endpoint(nil), p.endpoints...)
}

func (p *Pipeline) Mixers() []*Mixer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Mixer(nil), p.mixers...)
}

type Mixer struct {
	p  *Pipeline
	id string

	mu    sync.Mutex
	ports []*Port
}

func (m *Mixer) ID() string { return m.id }

func (m *Mixer) CreatePort(ctx context.Context) (core.Port, error) {
	m.mu.Lock()
	n := len(m.ports) + 1
	port := &Port{m: m, id: m.p.b.nextID("hubport")}
	m.ports = append(m.ports, port)
	m.mu.Unlock()
	if m.p.b.CreatePortFn != nil {
		if err := m.p.b.CreatePortFn(ctx, n); err != nil {
			return nil, err
		}
	}
	return port, nil
}

func (m *Mixer) Ports() []*Port {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Port(nil), m.ports...)
}

type Port struct {
	m  *Mixer
	id string

	mu    sync.Mutex
	sinks []string
}

func (p *Port) ID() string { return p.id }

func (p *Port) Connect(ctx context.Context, sink core.MediaElement) error {
	if fn := p.m.p.b.ConnectFn; fn != nil {
		if err := fn(ctx, p.id, sink.ID()); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.sinks = append(p.sinks, sink.ID())
	p.mu.Unlock()
	return nil
}

func (p *Port) Sinks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sinks...)
}

type Endpoint struct {
	p  *Pipeline
	id string

	mu         sync.Mutex
	sinks      []string
	offer      string
	gathered   bool
	candidates []domain.IceCandidate
	onICE      func(domain.IceCandidate)
}

func (e *Endpoint) ID() string { return e.id }

func (e *Endpoint) Connect(ctx context.Context, sink core.MediaElement) error {
	if fn := e.p.b.ConnectFn; fn != nil {
		if err := fn(ctx, e.id, sink.ID()); err != nil {
			return err
		}
	}
	e.mu.Lock()
	e.sinks = append(e.sinks, sink.ID())
	e.mu.Unlock()
	return nil
}

func (e *Endpoint) ProcessOffer(ctx context.Context, offer string) (string, error) {
	e.mu.Lock()
	e.offer = offer
	e.mu.Unlock()
	if e.p.b.ProcessOfferFn != nil {
		return e.p.b.ProcessOfferFn(ctx, offer)
	}
	return "answer:" + offer, nil
}

func (e *Endpoint) GatherCandidates(ctx context.Context) error {
	e.mu.Lock()
	e.gathered = true
	e.mu.Unlock()
	if e.p.b.GatherFn != nil {
		return e.p.b.GatherFn(ctx, e)
	}
	return nil
}

func (e *Endpoint) AddIceCandidate(ctx context.Context, c domain.IceCandidate) error {
	if e.p.b.AddCandidateFn != nil {
		if err := e.p.b.AddCandidateFn(ctx, e, c); err != nil {
			return err
		}
	}
	e.mu.Lock()
	e.candidates = append(e.candidates, c)
	e.mu.Unlock()
	return nil
}

func (e *Endpoint) OnIceCandidate(fn func(domain.IceCandidate)) {
	e.mu.Lock()
	e.onICE = fn
	e.mu.Unlock()
}

// Emit plays a locally discovered candidate through the registered callback.
func (e *Endpoint) Emit(c domain.IceCandidate) bool {
	e.mu.Lock()
	fn := e.onICE
	e.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(c)
	return true
}

func (e *Endpoint) Candidates() []domain.IceCandidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.IceCandidate(nil), e.candidates...)
}

func (e *Endpoint) Offer() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.offer
}

func (e *Endpoint) Gathered() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gathered
}

func (e *Endpoint) Sinks() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.sinks...)
}
