package kurento

import (
	"encoding/json"

	"github.com/dkeye/Mosaic/internal/domain"
)

const jsonrpcVersion = "2.0"

// Media object types and events of the Kurento elements module.
const (
	typeMediaPipeline  = "MediaPipeline"
	typeComposite      = "Composite"
	typeHubPort        = "HubPort"
	typeWebRtcEndpoint = "WebRtcEndpoint"

	eventIceCandidateFound = "IceCandidateFound"
)

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// message is anything the media server sends: a response to one of our
// requests or an onEvent notification.
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  *result         `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type result struct {
	Value     json.RawMessage `json:"value,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// RPCError is an error reported by the media server.
// Its message is surfaced to clients unchanged.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

type createParams struct {
	Type              string         `json:"type"`
	ConstructorParams map[string]any `json:"constructorParams"`
	Properties        map[string]any `json:"properties"`
	SessionID         string         `json:"sessionId,omitempty"`
}

type invokeParams struct {
	Object          string         `json:"object"`
	Operation       string         `json:"operation"`
	OperationParams map[string]any `json:"operationParams,omitempty"`
	SessionID       string         `json:"sessionId,omitempty"`
}

type subscribeParams struct {
	Object    string `json:"object"`
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
}

type releaseParams struct {
	Object    string `json:"object"`
	SessionID string `json:"sessionId,omitempty"`
}

type pingParams struct {
	Interval int64 `json:"interval"`
}

type eventParams struct {
	Value struct {
		Data   json.RawMessage `json:"data"`
		Object string          `json:"object"`
		Type   string          `json:"type"`
	} `json:"value"`
}

// iceCandidate is the Kurento complex type for a candidate.
type iceCandidate struct {
	Module        string `json:"__module__,omitempty"`
	Type          string `json:"__type__,omitempty"`
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex"`
}

func toWire(c domain.IceCandidate) iceCandidate {
	return iceCandidate{
		Module:        "kurento",
		Type:          "IceCandidate",
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	}
}

func (c iceCandidate) toDomain() domain.IceCandidate {
	return domain.IceCandidate{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	}
}

type iceCandidateFound struct {
	Candidate iceCandidate `json:"candidate"`
}
