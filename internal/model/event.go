package model

import (
	"encoding/json"
	"fmt"
)

// Step ids carried by events. Internal graph node names differ for verification:
// both verification variants report under StepVerifyClaims.
const (
	StepPreprocess    = "preprocess"
	StepExtractClaims = "extractClaims"
	StepDetectBiases  = "detectBiases"
	StepVerifyClaims  = "verifyClaims"
	StepReporter      = "reporter"

	// Reserved ids, never used by a step
	StepToken = "token"
	StepDone  = "[DONE]"
	StepError = "[ERROR]"
)

// IsReserved reports whether id is a reserved wire step id
func IsReserved(id string) bool {
	return id == StepToken || id == StepDone || id == StepError
}

// Event is a progress notification produced by a step for external observers.
// Later steps never read events back.
type Event struct {
	StepID  string  `json:"stepId"`
	Label   string  `json:"label"`
	Payload Payload `json:"payload"`
}

// Payload is the closed set of event payload shapes, one per step id
type Payload interface {
	stepID() string
}

// PreprocessPayload carries the segments produced by preprocessing
type PreprocessPayload struct {
	Segments []Segment `json:"segments"`
}

// ExtractClaimsPayload carries the claims found in the text
type ExtractClaimsPayload struct {
	Claims []Claim `json:"claims"`
}

// DetectBiasesPayload carries the biases found in the text
type DetectBiasesPayload struct {
	Biases []Bias `json:"biases"`
}

// VerifyClaimsPayload carries verification outcomes
type VerifyClaimsPayload struct {
	Claims []VerifiedClaim `json:"claims"`
}

// ReporterPayload carries the finished report
type ReporterPayload struct {
	Report  string          `json:"report"`
	Score   *Score          `json:"score,omitempty"`
	Details []SegmentDetail `json:"details,omitempty"`
}

// TokenPayload is one streamed fragment of the report text
type TokenPayload string

// DonePayload marks the end of a successful run
type DonePayload struct{}

// ErrorPayload marks a failed run
type ErrorPayload struct {
	Error string `json:"error"`
}

// UnknownPayload keeps payloads of step ids this build does not know about
type UnknownPayload struct {
	StepID string
	Raw    json.RawMessage
}

// MarshalJSON keeps the raw payload untouched
func (p UnknownPayload) MarshalJSON() ([]byte, error) {
	if len(p.Raw) == 0 {
		return []byte("null"), nil
	}
	return p.Raw, nil
}

func (PreprocessPayload) stepID() string    { return StepPreprocess }
func (ExtractClaimsPayload) stepID() string { return StepExtractClaims }
func (DetectBiasesPayload) stepID() string  { return StepDetectBiases }
func (VerifyClaimsPayload) stepID() string  { return StepVerifyClaims }
func (ReporterPayload) stepID() string      { return StepReporter }
func (TokenPayload) stepID() string         { return StepToken }
func (DonePayload) stepID() string          { return StepDone }
func (ErrorPayload) stepID() string         { return StepError }
func (p UnknownPayload) stepID() string     { return p.StepID }

// WireEvent is an event as decoded from a frame, with the payload still raw
type WireEvent struct {
	StepID  string          `json:"stepId"`
	Label   string          `json:"label"`
	Payload json.RawMessage `json:"payload"`
}

// Decode turns the raw payload into the variant matching the step id.
// Unknown step ids decode to UnknownPayload instead of failing.
func (e WireEvent) Decode() (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch e.StepID {
	case StepPreprocess:
		var v PreprocessPayload
		err = decodeRaw(e.Payload, &v)
		p = v
	case StepExtractClaims:
		var v ExtractClaimsPayload
		err = decodeRaw(e.Payload, &v)
		p = v
	case StepDetectBiases:
		var v DetectBiasesPayload
		err = decodeRaw(e.Payload, &v)
		p = v
	case StepVerifyClaims:
		var v VerifyClaimsPayload
		err = decodeRaw(e.Payload, &v)
		p = v
	case StepReporter:
		var v ReporterPayload
		err = decodeRaw(e.Payload, &v)
		p = v
	case StepToken:
		var s string
		if err = decodeRaw(e.Payload, &s); err == nil && s == "" {
			// Older servers put the fragment in the label only
			s = e.Label
		}
		p = TokenPayload(s)
	case StepDone:
		p = DonePayload{}
	case StepError:
		var v ErrorPayload
		_ = decodeRaw(e.Payload, &v)
		if v.Error == "" {
			v.Error = e.Label
		}
		p = v
	default:
		p = UnknownPayload{StepID: e.StepID, Raw: e.Payload}
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.StepID, err)
	}
	return p, nil
}

func decodeRaw(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
