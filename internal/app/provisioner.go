package app

import (
	"context"
	"errors"

	"github.com/dkeye/Mosaic/internal/app/fanout"
	"github.com/dkeye/Mosaic/internal/core"
	"github.com/dkeye/Mosaic/internal/domain"
)

// Provisioner creates the endpoint/port pairs of a session.
type Provisioner struct{}

type element struct {
	port     core.Port
	endpoint core.Endpoint
}

// Provision issues n port creations on the mixer and n endpoint creations on the pipeline
// at once. Pair i is built from the i-th port and the i-th endpoint requested.
func (Provisioner) Provision(ctx context.Context, pipeline core.Pipeline, mixer core.Mixer, n int) ([]Pair, error) {
	if n <= 0 {
		return []Pair{}, nil
	}
	elems, err := fanout.Run(ctx, 2*n, func(ctx context.Context, i int) (element, error) {
		if i < n {
			port, err := mixer.CreatePort(ctx)
			if err != nil {
				return element{}, domain.NewSessionError(domain.KindProvisioning, "create hub port", err)
			}
			return element{port: port}, nil
		}
		ep, err := pipeline.CreateEndpoint(ctx)
		if err != nil {
			return element{}, domain.NewSessionError(domain.KindProvisioning, "create endpoint", err)
		}
		return element{endpoint: ep}, nil
	})
	if err != nil {
		var se *domain.SessionError
		if !errors.As(err, &se) {
			err = domain.NewSessionError(domain.KindProvisioning, "provision", err)
		}
		return nil, err
	}

	pairs := make([]Pair, n)
	for i := range n {
		pairs[i] = Pair{Port: elems[i].port, Endpoint: elems[n+i].endpoint}
	}
	return pairs, nil
}
