// Package stream turns pipeline runs into server-sent event frames and reads them back.
package stream

import (
	"github.com/ppiankov/clarifai/internal/model"
	"github.com/ppiankov/clarifai/internal/pipeline"
)

// Frame is one unit of the wire protocol
type Frame struct {
	Event model.Event `json:"event"`
	Done  bool        `json:"done"`
}

// WireFrame is a frame as received, with the payload still undecoded
type WireFrame struct {
	Event model.WireEvent `json:"event"`
	Done  bool            `json:"done"`
}

// FrameOf maps a run chunk to its frame. Only the first event of an update is
// forwarded; updates without events, or whose event uses a reserved step id,
// produce no frame.
func FrameOf(c pipeline.Chunk) (Frame, bool) {
	switch c.Kind {
	case pipeline.ChunkToken:
		return TokenFrame(c.Token), true
	case pipeline.ChunkUpdate:
		ev, ok := c.Update.FirstEvent()
		if !ok || model.IsReserved(ev.StepID) {
			// A step event must never pass for a token or a terminal frame
			return Frame{}, false
		}
		return Frame{Event: ev}, true
	}
	return Frame{}, false
}

// TokenFrame carries one report fragment
func TokenFrame(tok string) Frame {
	return Frame{Event: model.Event{StepID: model.StepToken, Label: tok, Payload: model.TokenPayload(tok)}}
}

// DoneFrame terminates a successful stream
func DoneFrame() Frame {
	return Frame{Event: model.Event{StepID: model.StepDone, Label: "Done", Payload: model.DonePayload{}}, Done: true}
}

// ErrorFrame terminates a failed stream
func ErrorFrame(err error) Frame {
	msg := err.Error()
	return Frame{Event: model.Event{StepID: model.StepError, Label: msg, Payload: model.ErrorPayload{Error: msg}}, Done: true}
}
