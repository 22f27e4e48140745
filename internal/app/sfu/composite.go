// Package sfu is an in-process composite: every input is relayed, and the
// active input is written to the output track of every sink.
package sfu

import (
	"context"
	"maps"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Composite struct {
	id     string
	logger zerolog.Logger

	mu     sync.RWMutex
	relays map[string]*Relay
	order  []string
	active string
	sinks  map[string]*sink
}

func NewComposite(id string) *Composite {
	return &Composite{
		id:     id,
		logger: log.With().Str("module", "sfu").Str("composite", id).Logger(),
		relays: make(map[string]*Relay),
		sinks:  make(map[string]*sink),
	}
}

// StartRelay feeds src into the composite as input srcID. The first input becomes active.
func (c *Composite) StartRelay(ctx context.Context, srcID string, src RTPReader) {
	logger := c.logger.With().Str("src", srcID).Logger()
	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(src, cancel)

	c.mu.Lock()
	if old, ok := c.relays[srcID]; ok {
		logger.Info().Msg("replacing existing relay for input")
		old.Stop()
	} else {
		c.order = append(c.order, srcID)
	}
	c.relays[srcID] = relay
	if c.active == "" {
		c.active = srcID
	}
	c.mu.Unlock()

	logger.Info().Msg("starting relay loop")
	go func() {
		relay.loop(relayCtx, func(pkt *rtp.Packet) { c.forward(srcID, pkt) }, &logger)
		c.drop(srcID, relay)
	}()
}

// StopRelay removes input srcID and hands the output to the next input, if any.
func (c *Composite) StopRelay(srcID string) {
	c.drop(srcID, nil)
}

// drop removes input srcID if it is still served by want; a nil want matches any relay.
func (c *Composite) drop(srcID string, want *Relay) {
	c.mu.Lock()
	relay, ok := c.relays[srcID]
	ok = ok && (want == nil || relay == want)
	if ok {
		delete(c.relays, srcID)
		for i, id := range c.order {
			if id == srcID {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
		if c.active == srcID {
			c.active = ""
			if len(c.order) > 0 {
				c.active = c.order[0]
			}
		}
	}
	c.mu.Unlock()
	if ok {
		relay.Stop()
	}
}

// AddSink makes track receive the active input. A second call for dstID replaces the track.
func (c *Composite) AddSink(dstID string, track *webrtc.TrackLocalStaticRTP) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.sinks[dstID]; ok {
		old.close()
	}
	c.sinks[dstID] = newSink(track)
}

func (c *Composite) RemoveSink(dstID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sinks[dstID]; ok {
		s.close()
		delete(c.sinks, dstID)
	}
}

// Written returns how many packets reached dstID, or false if it is not a sink.
func (c *Composite) Written(dstID string) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sinks[dstID]
	if !ok {
		return 0, false
	}
	return s.written.Load(), true
}

func (c *Composite) Active() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

func (c *Composite) forward(srcID string, pkt *rtp.Packet) {
	c.mu.RLock()
	if c.active != srcID {
		c.mu.RUnlock()
		return
	}
	snapshot := maps.Clone(c.sinks)
	c.mu.RUnlock()

	var dead []string
	for dstID, s := range snapshot {
		ok, err := s.write(pkt)
		if err != nil {
			c.logger.Error().Err(err).Str("dst", dstID).Msg("write RTP error, dropping sink")
		}
		if !ok {
			dead = append(dead, dstID)
		}
	}

	if len(dead) > 0 {
		c.mu.Lock()
		for _, id := range dead {
			// the sink may have been replaced since the snapshot
			if s, ok := c.sinks[id]; ok && s == snapshot[id] {
				delete(c.sinks, id)
			}
		}
		c.mu.Unlock()
	}
}

// Stop ends every relay and drops all sinks.
func (c *Composite) Stop() {
	c.mu.Lock()
	relays := c.relays
	c.relays = make(map[string]*Relay)
	c.order = nil
	c.active = ""
	for _, s := range c.sinks {
		s.close()
	}
	c.sinks = make(map[string]*sink)
	c.mu.Unlock()
	for _, r := range relays {
		r.Stop()
	}
	c.logger.Info().Msg("composite stopped")
}
