package signal

import (
	"github.com/dkeye/Mosaic/internal/core"
	"github.com/dkeye/Mosaic/internal/domain"
)

type acceptedResponse struct {
	ID         string   `json:"id"`
	Response   string   `json:"response"`
	SDPAnswers []string `json:"sdpAnswers"`
}

type rejectedResponse struct {
	ID       string `json:"id"`
	Response string `json:"response"`
	Message  string `json:"message"`
}

type candidateMessage struct {
	ID        string              `json:"id"`
	SDPIndex  int                 `json:"sdpIndex"`
	Candidate domain.IceCandidate `json:"candidate"`
}

type stopMessage struct {
	ID string `json:"id"`
}

// wsOutbound renders session events as client frames.
type wsOutbound struct {
	ctl  *SignalWSController
	conn *WsSignalConn
}

var _ core.Outbound = (*wsOutbound)(nil)

func (o *wsOutbound) Accept(answers []string) error {
	if answers == nil {
		answers = []string{}
	}
	return o.ctl.sendJSON(o.conn, acceptedResponse{ID: "presenterResponse", Response: "accepted", SDPAnswers: answers})
}

func (o *wsOutbound) Reject(reason string) error {
	return o.ctl.sendJSON(o.conn, rejectedResponse{ID: "presenterResponse", Response: "rejected", Message: reason})
}

func (o *wsOutbound) IceCandidate(index int, c domain.IceCandidate) error {
	return o.ctl.sendJSON(o.conn, candidateMessage{ID: "iceCandidate", SDPIndex: index, Candidate: c})
}

func (o *wsOutbound) StopCommunication() error {
	return o.ctl.sendJSON(o.conn, stopMessage{ID: "stopCommunication"})
}

func (o *wsOutbound) Error(message string) error {
	return o.ctl.sendJSON(o.conn, errorMessage{ID: "error", Message: message})
}
