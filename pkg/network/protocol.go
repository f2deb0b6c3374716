// Package network serves the orbit session over HTTP and WebSocket and
// provides a WebSocket client for it.
//
// Every WebSocket frame is a JSON Envelope. Clients send edit requests
// (set_eccentricity, set_semi_major_axis, set_central_mass, load_preset) and
// get_state; the server pushes state_changed after every accepted edit,
// rate_sample while the animation runs, and error for refused requests.
package network

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/illum/orbitsim/pkg/event"
	"github.com/illum/orbitsim/pkg/orbit"
	"github.com/illum/orbitsim/pkg/session"
)

// MessageType names the kind of an Envelope.
type MessageType string

// Client to server.
const (
	MsgSetEccentricity  MessageType = "set_eccentricity"
	MsgSetSemiMajorAxis MessageType = "set_semi_major_axis"
	MsgSetCentralMass   MessageType = "set_central_mass"
	MsgLoadPreset       MessageType = "load_preset"
	MsgGetState         MessageType = "get_state"
)

// Server to client.
const (
	MsgStateChanged MessageType = "state_changed"
	MsgState        MessageType = "state"
	MsgRateSample   MessageType = "rate_sample"
	MsgError        MessageType = "error"
)

// Error codes carried in ErrorPayload.Code.
const (
	CodeInvalidInput   = "invalid_input"
	CodeUnknownPreset  = "unknown_preset"
	CodeBadRequest     = "bad_request"
	CodeUnknownMessage = "unknown_message"
	CodeRateLimited    = "rate_limited"
	CodeInternal       = "internal"
)

var (
	// ErrBadRequest marks a request whose payload could not be decoded.
	ErrBadRequest = errors.New("bad request")
	// ErrUnknownMessage marks an envelope type the server does not handle.
	ErrUnknownMessage = errors.New("unknown message type")
)

// Envelope is one WebSocket frame. ID is chosen by the client and echoed in
// direct replies.
type Envelope struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeEnvelope marshals payload into a frame of type t.
func EncodeEnvelope(t MessageType, id string, payload interface{}) ([]byte, error) {
	env := Envelope{Type: t, ID: id}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", t, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: %s has no payload", ErrBadRequest, e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrBadRequest, e.Type, err)
	}
	return nil
}

// EccentricityRequest sets the eccentricity, keeping the semi-major axis.
type EccentricityRequest struct {
	Value *float64 `json:"value"`
}

// SemiMajorAxisRequest resets the orbit to a circle. Text, when set, is the
// field as typed and takes precedence over AU.
type SemiMajorAxisRequest struct {
	AU   *float64 `json:"au,omitempty"`
	Text string   `json:"text,omitempty"`
}

// CentralMassRequest sets the central mass. Either both numeric fields or the
// text fields are used; text wins when any text field is set.
type CentralMassRequest struct {
	Mantissa     *float64 `json:"mantissa,omitempty"`
	Exponent     *int     `json:"exponent,omitempty"`
	MantissaText string   `json:"mantissaText,omitempty"`
	ExponentText string   `json:"exponentText,omitempty"`
}

// PresetRequest loads a named preset.
type PresetRequest struct {
	Name string `json:"name"`
}

// StatePayload is the orbit state pushed to clients.
type StatePayload struct {
	Epoch      uint64           `json:"epoch"`
	Cause      string           `json:"cause,omitempty"`
	Shape      orbit.Shape      `json:"shape"`
	MassKg     float64          `json:"massKg"`
	Quantities orbit.Quantities `json:"quantities"`
	Labels     orbit.Labels     `json:"labels"`
}

// RatePayload is one speed sample and the playback rate it produced.
type RatePayload struct {
	Epoch          uint64  `json:"epoch"`
	SpeedKms       float64 `json:"speedKms"`
	RateRatio      float64 `json:"rateRatio"`
	DistanceMeters float64 `json:"distanceMeters"`
	Label          string  `json:"label"`
}

// ErrorPayload describes a refused request.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func statePayloadFromEvent(e *event.StateEvent) StatePayload {
	return StatePayload{
		Epoch:      e.Epoch,
		Cause:      e.Cause,
		Shape:      e.Shape,
		MassKg:     e.MassKg,
		Quantities: e.Quantities,
		Labels:     e.Quantities.Labels(),
	}
}

func statePayloadFromSnapshot(s session.Snapshot) StatePayload {
	return StatePayload{
		Epoch:      s.Epoch,
		Shape:      s.State.Shape(),
		MassKg:     s.State.MassKg(),
		Quantities: s.Quantities,
		Labels:     s.Labels,
	}
}

func ratePayloadFromEvent(e *event.RateEvent) RatePayload {
	return RatePayload{
		Epoch:          e.Epoch,
		SpeedKms:       e.SpeedKms,
		RateRatio:      e.RateRatio,
		DistanceMeters: e.DistanceMeters,
		Label:          orbit.SpeedLabel(e.SpeedKms),
	}
}
