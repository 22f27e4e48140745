package orch

import (
	"context"

	"github.com/dkeye/Mosaic/internal/app"
	"github.com/dkeye/Mosaic/internal/core"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// Orchestrator drives presenter sessions against a media backend.
// It is the only entry point the transport layer talks to.
type Orchestrator struct {
	Registry    *app.Registry
	Candidates  *app.CandidateQueue
	Backend     core.MediaBackend
	Provisioner app.Provisioner
	Coordinator app.Coordinator
	Policy      app.Policy
}

func New(backend core.MediaBackend, policy app.Policy) *Orchestrator {
	return &Orchestrator{
		Registry:   app.NewRegistry(),
		Candidates: app.NewCandidateQueue(),
		Backend:    backend,
		Policy:     policy,
	}
}

// Shutdown stops every registered session. Release failures are logged and never abort the sweep.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	sessions := o.Registry.Snapshot()
	log.Info().Str("module", "orch").Int("sessions", len(sessions)).Msg("releasing all sessions")

	var wg conc.WaitGroup
	for _, sess := range sessions {
		wg.Go(func() {
			o.Stop(ctx, sess.ID)
		})
	}
	if r := wg.WaitAndRecover(); r != nil {
		log.Error().Str("module", "orch").Str("panic", r.String()).Msg("session teardown panicked")
	}
}

func (o *Orchestrator) release(ctx context.Context, sess *app.Session, pipeline core.Pipeline) {
	if pipeline == nil {
		return
	}
	if err := pipeline.Release(context.WithoutCancel(ctx)); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("sid", string(sess.ID)).Str("pipeline", pipeline.ID()).Msg("release pipeline")
		return
	}
	log.Info().Str("module", "orch").Str("sid", string(sess.ID)).Str("pipeline", pipeline.ID()).Msg("pipeline released")
}
