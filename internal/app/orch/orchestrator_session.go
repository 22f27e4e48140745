package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Mosaic/internal/app"
	"github.com/dkeye/Mosaic/internal/core"
	"github.com/dkeye/Mosaic/internal/domain"
	"github.com/dkeye/Mosaic/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Start provisions one endpoint per offer, negotiates them and replies to out.
// It is Begin followed by Run.
func (o *Orchestrator) Start(ctx context.Context, sid domain.SessionID, out core.Outbound, offers []string) ([]string, error) {
	sess, err := o.Begin(ctx, sid, out)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, sess, out, offers)
}

// Begin registers a new session for sid so that Stop and SubmitCandidate see it
// from now on. It does not block on the media backend. A second Begin for a live
// sid is rejected with ErrSessionExists.
func (o *Orchestrator) Begin(ctx context.Context, sid domain.SessionID, out core.Outbound) (*app.Session, error) {
	sess := app.NewSession(ctx, sid, nil)
	sess.Out = &sessionOutbound{o: o, sess: sess, Outbound: out}
	if !o.Registry.Insert(sess) {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("start: session already exists")
		metrics.SessionStarts.WithLabelValues(metrics.ResultRejected).Inc()
		_ = out.Reject(domain.ErrSessionExists.Error())
		return nil, domain.ErrSessionExists
	}
	metrics.SessionsActive.Inc()
	return sess, nil
}

// Run builds the media graph of a session returned by Begin and replies to out.
// The answers are returned in offer order. On failure the session is torn down
// and the client receives a rejection; nothing is retried. A session stopped
// meanwhile gets no reply: Stop already told the client.
func (o *Orchestrator) Run(ctx context.Context, sess *app.Session, out core.Outbound, offers []string) ([]string, error) {
	logger := log.With().Str("module", "orch").Str("sid", string(sess.ID)).Logger()
	logger.Info().Int("streams", len(offers)).Msg("starting presenter")

	answers, err := o.run(sess, offers, &logger)
	if err != nil {
		if errors.Is(err, domain.ErrSessionClosed) {
			logger.Info().Msg("start abandoned: session stopped")
			metrics.SessionStarts.WithLabelValues(metrics.ResultStopped).Inc()
			return nil, err
		}
		logger.Error().Err(err).Msg("start failed")
		metrics.SessionStarts.WithLabelValues(metrics.ResultRejected).Inc()
		o.abort(ctx, sess)
		_ = out.Reject(domain.Reason(err))
		return nil, err
	}

	_ = out.Accept(answers)
	metrics.SessionStarts.WithLabelValues(metrics.ResultAccepted).Inc()
	metrics.StreamsNegotiated.Add(float64(len(answers)))
	logger.Info().Int("answers", len(answers)).Msg("presenter live")

	o.Coordinator.Gather(sess.Context(), sess.ID, sess.Out, sess.Endpoints())
	return answers, nil
}

func (o *Orchestrator) run(sess *app.Session, offers []string, logger *zerolog.Logger) ([]string, error) {
	ctx := sess.Context()
	if !sess.Advance(domain.StateProvisioning) {
		return nil, domain.ErrSessionClosed
	}

	pipeline, err := o.Backend.CreatePipeline(ctx)
	if err != nil {
		return nil, o.settle(sess, domain.NewSessionError(domain.KindProvisioning, "create pipeline", err))
	}
	if !sess.AttachPipeline(pipeline) {
		o.release(ctx, sess, pipeline)
		return nil, domain.ErrSessionClosed
	}
	logger.Debug().Str("pipeline", pipeline.ID()).Msg("pipeline created")

	mixer, err := pipeline.CreateMixer(ctx)
	if err != nil {
		return nil, o.settle(sess, domain.NewSessionError(domain.KindProvisioning, "create composite", err))
	}
	if !sess.AttachMixer(mixer) {
		return nil, domain.ErrSessionClosed
	}
	// Composite output; the mixed stream is available here for recording or viewers.
	if _, err := mixer.CreatePort(ctx); err != nil {
		return nil, o.settle(sess, domain.NewSessionError(domain.KindProvisioning, "create output hub port", err))
	}

	pairs, err := o.Provisioner.Provision(ctx, pipeline, mixer, len(offers))
	if err != nil {
		return nil, o.settle(sess, err)
	}
	attached := sess.AttachPairs(pairs, func(index int, ep core.Endpoint) {
		o.replay(sess, index, ep)
	})
	if !attached || !sess.Advance(domain.StateNegotiating) {
		return nil, domain.ErrSessionClosed
	}
	logger.Debug().Int("pairs", len(pairs)).Msg("endpoints provisioned")

	endpoints := make([]core.Endpoint, len(pairs))
	ports := make([]core.Port, len(pairs))
	for i, p := range pairs {
		endpoints[i], ports[i] = p.Endpoint, p.Port
	}
	answers, err := o.Coordinator.Negotiate(ctx, sess.Out, endpoints, ports, offers)
	if err != nil {
		return nil, o.settle(sess, err)
	}
	if !o.Registry.Holds(sess) || !sess.Advance(domain.StateLive) {
		return nil, domain.ErrSessionClosed
	}
	return answers, nil
}

// settle turns a failure into ErrSessionClosed when the session was stopped meanwhile,
// so results of a cancelled start are never reported as backend errors.
func (o *Orchestrator) settle(sess *app.Session, err error) error {
	if !o.Registry.Holds(sess) {
		return domain.ErrSessionClosed
	}
	return err
}

// Stop tears down the session bound to sid, if any. Calling it again is a no-op.
func (o *Orchestrator) Stop(ctx context.Context, sid domain.SessionID) {
	o.Candidates.Clear(sid)
	sess, ok := o.Registry.Remove(sid)
	if !ok {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Msg("stop: no session")
		return
	}
	o.close(ctx, sess)
}

// abort tears down sess unless it has already been replaced or stopped.
func (o *Orchestrator) abort(ctx context.Context, sess *app.Session) {
	if !o.Registry.Detach(sess) {
		return
	}
	o.Candidates.Clear(sess.ID)
	o.close(ctx, sess)
}

func (o *Orchestrator) close(ctx context.Context, sess *app.Session) {
	pipeline, ok := sess.Close()
	if !ok {
		return
	}
	metrics.SessionsActive.Dec()
	o.release(ctx, sess, pipeline)
	if err := sess.Out.StopCommunication(); err != nil {
		log.Debug().Err(err).Str("module", "orch").Str("sid", string(sess.ID)).Msg("stopCommunication not delivered")
	}
	log.Info().Str("module", "orch").Str("sid", string(sess.ID)).Msg("session stopped")
}
