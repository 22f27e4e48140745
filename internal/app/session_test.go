package app

import (
	"context"
	"testing"

	"github.com/dkeye/Mosaic/internal/core"
	"github.com/dkeye/Mosaic/internal/core/coretest"
	"github.com/dkeye/Mosaic/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStateTransitions(t *testing.T) {
	s := NewSession(context.Background(), "sid", nil)
	assert.Equal(t, domain.StateEmpty, s.State())
	assert.False(t, s.Advance(domain.StateLive))
	assert.True(t, s.Advance(domain.StateProvisioning))
	assert.True(t, s.Advance(domain.StateNegotiating))
	assert.True(t, s.Advance(domain.StateLive))
	assert.True(t, s.Advance(domain.StateClosed))
	assert.False(t, s.Advance(domain.StateProvisioning))
}

func TestSessionCloseHandsPipelineOutOnce(t *testing.T) {
	b := &coretest.Backend{}
	p, err := b.CreatePipeline(context.Background())
	require.NoError(t, err)

	s := NewSession(context.Background(), "sid", nil)
	require.True(t, s.AttachPipeline(p))

	got, ok := s.Close()
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.ErrorIs(t, s.Context().Err(), context.Canceled)

	got, ok = s.Close()
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.False(t, s.AttachPipeline(p), "closed session must not take ownership")
}

func TestSessionRouteParksUntilAttached(t *testing.T) {
	b := &coretest.Backend{}
	p, _ := b.CreatePipeline(context.Background())
	ep, _ := p.CreateEndpoint(context.Background())

	s := NewSession(context.Background(), "sid", nil)
	parked, applied := 0, 0
	s.Route(0, func(core.Endpoint) { applied++ }, func() { parked++ })
	assert.Equal(t, 1, parked)

	var replayed []int
	require.True(t, s.AttachPairs([]Pair{{Endpoint: ep}}, func(i int, _ core.Endpoint) {
		replayed = append(replayed, i)
	}))
	assert.Equal(t, []int{0}, replayed)

	s.Route(0, func(got core.Endpoint) {
		applied++
		assert.Same(t, ep, got)
	}, func() { parked++ })
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, parked)

	s.Route(5, func(core.Endpoint) { applied++ }, func() { parked++ })
	assert.Equal(t, 2, parked)
}
