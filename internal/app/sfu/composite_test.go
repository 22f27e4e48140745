package sfu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanReader serves packets from a channel; closing it ends the track.
type chanReader chan *rtp.Packet

func (r chanReader) ReadRTP() (*rtp.Packet, error) {
	pkt, ok := <-r
	if !ok {
		return nil, errors.New("track ended")
	}
	return pkt, nil
}

func newSinkTrack(t *testing.T) *webrtc.TrackLocalStaticRTP {
	t.Helper()
	track, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "composite")
	require.NoError(t, err)
	return track
}

func TestCompositeFirstInputIsActive(t *testing.T) {
	c := NewComposite("c1")
	defer c.Stop()

	a, b := make(chanReader), make(chanReader)
	c.StartRelay(context.Background(), "port-a", a)
	c.StartRelay(context.Background(), "port-b", b)
	assert.Equal(t, "port-a", c.Active())

	close(a)
	assert.Eventually(t, func() bool { return c.Active() == "port-b" }, time.Second, 5*time.Millisecond)

	c.StopRelay("port-b")
	assert.Empty(t, c.Active())
}

func TestCompositeForwardsOnlyActiveInput(t *testing.T) {
	c := NewComposite("c1")
	defer c.Stop()
	c.AddSink("ep-1", newSinkTrack(t))

	c.StartRelay(context.Background(), "port-a", make(chanReader))
	// an unbound local track accepts writes without error
	c.forward("port-b", &rtp.Packet{})
	c.forward("port-a", &rtp.Packet{})
	c.forward("port-a", &rtp.Packet{})

	n, ok := c.Written("ep-1")
	require.True(t, ok)
	assert.Equal(t, uint64(2), n)
}

func TestCompositeRelayFeedsSinks(t *testing.T) {
	c := NewComposite("c1")
	defer c.Stop()
	c.AddSink("ep-1", newSinkTrack(t))
	c.AddSink("ep-2", newSinkTrack(t))

	src := make(chanReader, 3)
	for range 3 {
		src <- &rtp.Packet{}
	}
	c.StartRelay(context.Background(), "port-a", src)

	assert.Eventually(t, func() bool {
		a, _ := c.Written("ep-1")
		b, _ := c.Written("ep-2")
		return a == 3 && b == 3
	}, time.Second, 5*time.Millisecond)
}

func TestCompositeRemovedSinkGetsNothing(t *testing.T) {
	c := NewComposite("c1")
	defer c.Stop()
	c.AddSink("ep-1", newSinkTrack(t))
	c.StartRelay(context.Background(), "port-a", make(chanReader))

	c.RemoveSink("ep-1")
	c.forward("port-a", &rtp.Packet{})

	_, ok := c.Written("ep-1")
	assert.False(t, ok)
}

func TestClosedSinkRefusesWrites(t *testing.T) {
	s := newSink(newSinkTrack(t))

	ok, err := s.write(&rtp.Packet{})
	require.NoError(t, err)
	assert.True(t, ok)

	s.close()
	ok, err = s.write(&rtp.Packet{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), s.written.Load())
}
