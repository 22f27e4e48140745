package app

import (
	"context"
	"errors"

	"github.com/dkeye/Mosaic/internal/app/fanout"
	"github.com/dkeye/Mosaic/internal/core"
	"github.com/dkeye/Mosaic/internal/domain"
	"github.com/rs/zerolog/log"
)

// Coordinator wires endpoints to their mixer ports and runs offer/answer on them.
type Coordinator struct{}

// Negotiate returns one answer per offer, index-aligned. Extra endpoints, ports or offers
// beyond the shortest of the three are ignored.
func (Coordinator) Negotiate(
	ctx context.Context,
	out core.Outbound,
	endpoints []core.Endpoint,
	ports []core.Port,
	offers []string,
) ([]string, error) {
	n := min(len(endpoints), len(ports), len(offers))
	answers, err := fanout.Run(ctx, n, func(ctx context.Context, i int) (string, error) {
		ep, port := endpoints[i], ports[i]
		if err := ep.Connect(ctx, port); err != nil {
			return "", domain.NewSessionError(domain.KindNegotiation, "connect endpoint to hub port", err)
		}
		if err := port.Connect(ctx, ep); err != nil {
			return "", domain.NewSessionError(domain.KindNegotiation, "connect hub port to endpoint", err)
		}
		ep.OnIceCandidate(func(c domain.IceCandidate) {
			_ = out.IceCandidate(i, c)
		})
		answer, err := ep.ProcessOffer(ctx, offers[i])
		if err != nil {
			return "", domain.NewSessionError(domain.KindNegotiation, "process offer", err)
		}
		return answer, nil
	})
	if err != nil {
		var se *domain.SessionError
		if !errors.As(err, &se) {
			err = domain.NewSessionError(domain.KindNegotiation, "negotiate", err)
		}
		return nil, err
	}
	return answers, nil
}

// Gather starts candidate gathering on every endpoint without waiting for it.
// Failures are reported through out and leave the session running.
func (Coordinator) Gather(ctx context.Context, sid domain.SessionID, out core.Outbound, endpoints []core.Endpoint) {
	for i, ep := range endpoints {
		go func() {
			err := ep.GatherCandidates(ctx)
			if err == nil || ctx.Err() != nil {
				return
			}
			gerr := domain.NewSessionError(domain.KindGather, "gather candidates", err)
			log.Warn().Err(gerr).Str("module", "app.coordinator").Str("sid", string(sid)).Int("index", i).Msg("gather failed")
			_ = out.Error(gerr.Reason())
		}()
	}
}
