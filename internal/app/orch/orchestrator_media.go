package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Mosaic/internal/app"
	"github.com/dkeye/Mosaic/internal/core"
	"github.com/dkeye/Mosaic/internal/domain"
	"github.com/dkeye/Mosaic/internal/metrics"
	"github.com/rs/zerolog/log"
)

// SubmitCandidate hands a remote candidate to the endpoint at index, or buffers it
// until Start creates that endpoint. Unknown sessions are buffered too.
func (o *Orchestrator) SubmitCandidate(sid domain.SessionID, index int, c domain.IceCandidate) {
	if index < 0 {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Int("index", index).Msg("candidate: negative index dropped")
		return
	}

	sess, ok := o.Registry.Get(sid)
	if !ok {
		o.park(sid, index, c)
		// The session may have been created and provisioned since the lookup.
		if sess, ok := o.Registry.Get(sid); ok {
			sess.Route(index, func(ep core.Endpoint) { o.replay(sess, index, ep) }, func() {})
		}
		return
	}

	sess.Route(index,
		func(ep core.Endpoint) { o.apply(sess, index, ep, c, metrics.SourceLive) },
		func() { o.park(sid, index, c) },
	)
}

func (o *Orchestrator) park(sid domain.SessionID, index int, c domain.IceCandidate) {
	o.Candidates.Enqueue(sid, index, c)
	metrics.CandidatesQueued.Inc()
}

// replay applies every candidate buffered for index. Callers hold the session's routing lock.
func (o *Orchestrator) replay(sess *app.Session, index int, ep core.Endpoint) {
	queued := o.Candidates.Drain(sess.ID, index)
	if len(queued) == 0 {
		return
	}
	log.Debug().Str("module", "orch").Str("sid", string(sess.ID)).Int("index", index).Int("count", len(queued)).Msg("replaying queued candidates")
	for _, c := range queued {
		o.apply(sess, index, ep, c, metrics.SourceQueue)
	}
}

func (o *Orchestrator) apply(sess *app.Session, index int, ep core.Endpoint, c domain.IceCandidate, source string) {
	if err := ep.AddIceCandidate(sess.Context(), c); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sess.ID)).Int("index", index).Msg("add ice candidate")
		return
	}
	metrics.CandidatesApplied.WithLabelValues(source).Inc()
}

// sessionOutbound filters server-initiated messages of a session: nothing is sent
// once the session left the registry, and a saturated client is handled by Policy.
type sessionOutbound struct {
	core.Outbound
	o    *Orchestrator
	sess *app.Session
}

func (so *sessionOutbound) IceCandidate(index int, c domain.IceCandidate) error {
	if !so.o.Registry.Holds(so.sess) {
		return domain.ErrSessionClosed
	}
	return so.deliver("iceCandidate", so.Outbound.IceCandidate(index, c))
}

func (so *sessionOutbound) Error(message string) error {
	if !so.o.Registry.Holds(so.sess) {
		return domain.ErrSessionClosed
	}
	return so.deliver("error", so.Outbound.Error(message))
}

func (so *sessionOutbound) deliver(message string, err error) error {
	if !errors.Is(err, core.ErrBackpressure) || so.o.Policy == nil {
		return err
	}
	switch so.o.Policy.OnBackPressure(so.sess.ID, message) {
	case app.StopSession:
		log.Warn().Str("module", "orch").Str("sid", string(so.sess.ID)).Str("message", message).Msg("client not draining, stopping session")
		go so.o.abort(context.Background(), so.sess)
	case app.DropFrame, app.NoAction:
	}
	return err
}
