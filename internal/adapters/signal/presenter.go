package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dkeye/Mosaic/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrUnknownMessage = errors.New("unknown message id")

type presenterMessage struct {
	ID        string   `json:"id"`
	SDPOffers []string `json:"sdpOffers" validate:"required,dive,required"`
}

type iceCandidateMessage struct {
	ID        string              `json:"id"`
	SDPIndex  *int                `json:"sdpIndex" validate:"required,gte=0"`
	Candidate domain.IceCandidate `json:"candidate"`
}

type errorMessage struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (ctl *SignalWSController) handlePresenter(ctx context.Context, sid domain.SessionID, token string, c *WsSignalConn, data []byte) {
	var msg presenterMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad presenter payload")
		ctl.sendError(c, "Invalid presenter message: "+err.Error())
		return
	}
	if err := ctl.validate.Struct(msg); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("presenter payload rejected")
		ctl.sendError(c, "Invalid presenter message: "+err.Error())
		return
	}

	out := &wsOutbound{ctl: ctl, conn: c}
	if ok, wait := ctl.Limiter.Allow(token); !ok {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("client", token).Dur("retry_after", wait).Msg("presenter start rate limited")
		_ = out.Reject("too many presenter attempts")
		return
	}

	// The session is registered before the next message is read, so a following
	// stop or candidate finds it. Building the media graph blocks on the media server.
	sess, err := ctl.Orch.Begin(ctx, sid, out)
	if err != nil {
		return
	}
	go func() {
		_, _ = ctl.Orch.Run(ctx, sess, out, msg.SDPOffers)
	}()
}

func (ctl *SignalWSController) handleStop(sid domain.SessionID) {
	ctl.Orch.Stop(context.Background(), sid)
}

func (ctl *SignalWSController) handleIceCandidate(sid domain.SessionID, c *WsSignalConn, data []byte) {
	var msg iceCandidateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad candidate payload")
		ctl.sendError(c, "Invalid candidate message: "+err.Error())
		return
	}
	if err := ctl.validate.Struct(msg); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("candidate payload rejected")
		ctl.sendError(c, "Invalid candidate message: "+err.Error())
		return
	}
	ctl.Orch.SubmitCandidate(sid, *msg.SDPIndex, msg.Candidate)
}
