package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/illum/orbitsim/pkg/session"
	"github.com/illum/orbitsim/pkg/validation"
)

// applyEdit decodes one edit request and runs it against the session.
func applyEdit(s *session.Session, t MessageType, payload json.RawMessage) (session.Snapshot, error) {
	env := Envelope{Type: t, Payload: payload}

	switch t {
	case MsgSetEccentricity:
		var req EccentricityRequest
		if err := env.Decode(&req); err != nil {
			return session.Snapshot{}, err
		}
		if req.Value == nil {
			return session.Snapshot{}, fmt.Errorf("%w: value is required", ErrBadRequest)
		}
		return s.SetEccentricity(*req.Value)

	case MsgSetSemiMajorAxis:
		var req SemiMajorAxisRequest
		if err := env.Decode(&req); err != nil {
			return session.Snapshot{}, err
		}
		switch {
		case req.Text != "":
			return s.SetSemiMajorAxisText(req.Text)
		case req.AU != nil:
			return s.SetSemiMajorAxisAU(*req.AU)
		}
		return session.Snapshot{}, fmt.Errorf("%w: au or text is required", ErrBadRequest)

	case MsgSetCentralMass:
		var req CentralMassRequest
		if err := env.Decode(&req); err != nil {
			return session.Snapshot{}, err
		}
		switch {
		case req.MantissaText != "" || req.ExponentText != "":
			return s.SetCentralMassText(req.MantissaText, req.ExponentText)
		case req.Mantissa != nil && req.Exponent != nil:
			return s.SetCentralMass(*req.Mantissa, *req.Exponent)
		}
		return session.Snapshot{}, fmt.Errorf("%w: mantissa and exponent are required", ErrBadRequest)

	case MsgLoadPreset:
		var req PresetRequest
		if err := env.Decode(&req); err != nil {
			return session.Snapshot{}, err
		}
		return loadPreset(s, req.Name)
	}

	return session.Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownMessage, t)
}

func loadPreset(s *session.Session, name string) (session.Snapshot, error) {
	normalized, err := validation.NormalizePresetName(name)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return s.LoadPreset(normalized)
}

// classifyError maps an edit error to an HTTP status and an error code.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrUnknownPreset):
		return http.StatusNotFound, CodeUnknownPreset
	case errors.Is(err, session.ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidInput
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, ErrUnknownMessage):
		return http.StatusBadRequest, CodeUnknownMessage
	}
	return http.StatusInternalServerError, CodeInternal
}
