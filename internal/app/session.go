package app

import (
	"context"
	"sync"

	"github.com/dkeye/Mosaic/internal/core"
	"github.com/dkeye/Mosaic/internal/domain"
)

// Pair is one negotiated stream: the browser-facing endpoint and its port on the mixer.
type Pair struct {
	Endpoint core.Endpoint
	Port     core.Port
}

// Session is the server side of one presenter connection.
type Session struct {
	ID  domain.SessionID
	Out core.Outbound

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    domain.State
	pipeline core.Pipeline
	mixer    core.Mixer
	pairs    []Pair

	// routeMu orders candidate delivery: replay of queued candidates and
	// live submissions never interleave for the same session.
	routeMu sync.Mutex
}

func NewSession(ctx context.Context, sid domain.SessionID, out core.Outbound) *Session {
	ctx, cancel := context.WithCancel(ctx)
	return &Session{
		ID:     sid,
		Out:    out,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context is cancelled when the session is closed.
func (s *Session) Context() context.Context { return s.ctx }

func (s *Session) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Advance moves the session to the next state if the transition is legal.
func (s *Session) Advance(to domain.State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Next(to) {
		return false
	}
	s.state = to
	return true
}

// AttachPipeline hands ownership of p to the session. It fails once the session is closed,
// in which case the caller still owns p.
func (s *Session) AttachPipeline(p core.Pipeline) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.StateClosed {
		return false
	}
	s.pipeline = p
	return true
}

func (s *Session) AttachMixer(m core.Mixer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.StateClosed {
		return false
	}
	s.mixer = m
	return true
}

// AttachPairs publishes the provisioned pairs and calls replay for every index
// before any other candidate can be routed to them.
func (s *Session) AttachPairs(pairs []Pair, replay func(index int, ep core.Endpoint)) bool {
	s.routeMu.Lock()
	defer s.routeMu.Unlock()

	s.mu.Lock()
	if s.state == domain.StateClosed {
		s.mu.Unlock()
		return false
	}
	s.pairs = pairs
	s.mu.Unlock()

	for i, p := range pairs {
		replay(i, p.Endpoint)
	}
	return true
}

// Route calls apply with the endpoint at index, or park if there is none yet.
func (s *Session) Route(index int, apply func(ep core.Endpoint), park func()) {
	s.routeMu.Lock()
	defer s.routeMu.Unlock()
	if ep, ok := s.Endpoint(index); ok {
		apply(ep)
		return
	}
	park()
}

func (s *Session) Endpoint(index int) (core.Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.pairs) {
		return nil, false
	}
	return s.pairs[index].Endpoint, true
}

func (s *Session) Endpoints() []core.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Endpoint, len(s.pairs))
	for i, p := range s.pairs {
		out[i] = p.Endpoint
	}
	return out
}

func (s *Session) Mixer() core.Mixer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mixer
}

// Close marks the session closed and returns the pipeline the caller must release.
// Only the first call reports ok.
func (s *Session) Close() (core.Pipeline, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.StateClosed {
		return nil, false
	}
	s.state = domain.StateClosed
	s.cancel()
	p := s.pipeline
	s.pipeline = nil
	s.mixer = nil
	s.pairs = nil
	return p, true
}
