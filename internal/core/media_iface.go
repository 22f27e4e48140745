package core

import (
	"context"

	"github.com/dkeye/Mosaic/internal/domain"
)

// MediaBackend is the media server a session allocates its graph on.
// Every call may block on the network and fail on its own.
type MediaBackend interface {
	CreatePipeline(ctx context.Context) (Pipeline, error)
	// Close drops the backend connection. Pipelines are not released by it.
	Close() error
}

// MediaElement is anything that can be the sink of a connect call.
type MediaElement interface {
	ID() string
}

// Pipeline owns every element created in it; Release frees them all.
type Pipeline interface {
	MediaElement
	CreateMixer(ctx context.Context) (Mixer, error)
	CreateEndpoint(ctx context.Context) (Endpoint, error)
	Release(ctx context.Context) error
}

// Mixer combines the streams of its ports into one composite output.
type Mixer interface {
	MediaElement
	CreatePort(ctx context.Context) (Port, error)
}

type Port interface {
	MediaElement
	Connect(ctx context.Context, sink MediaElement) error
}

// Endpoint is one WebRTC transport negotiated with the browser.
type Endpoint interface {
	MediaElement
	Connect(ctx context.Context, sink MediaElement) error
	ProcessOffer(ctx context.Context, offer string) (string, error)
	GatherCandidates(ctx context.Context) error
	AddIceCandidate(ctx context.Context, c domain.IceCandidate) error
	// OnIceCandidate sets a callback for locally discovered candidates.
	OnIceCandidate(func(domain.IceCandidate))
}
