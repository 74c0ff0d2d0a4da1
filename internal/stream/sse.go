package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ContentType is the media type of the event stream
const ContentType = "text/event-stream"

// ErrMalformedFrame is returned by Decoder.Next for a frame that is not valid JSON.
// The decoder stays usable after it.
var ErrMalformedFrame = errors.New("malformed frame")

// SetHeaders prepares w for streaming frames
func SetHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Encoder writes frames as "data: <json>\n\n", flushing after each one when
// the writer supports it
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
}

// NewEncoder creates an encoder over w
func NewEncoder(w io.Writer) *Encoder {
	f, _ := w.(http.Flusher)
	return &Encoder{w: w, flusher: f}
}

// Encode writes one frame
func (e *Encoder) Encode(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(len(data) + 8)
	buf.WriteString("data: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	if _, err := e.w.Write(buf.Bytes()); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// Decoder reads frames from an event stream
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder creates a decoder over r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next frame. It returns io.EOF at the end of the stream and
// an error wrapping ErrMalformedFrame for a frame that does not decode.
func (d *Decoder) Next() (WireFrame, error) {
	var data []string
	for {
		line, err := d.r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF && len(data) > 0 {
				return decodeFrame(data)
			}
			return WireFrame{}, err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if len(data) > 0 {
				return decodeFrame(data)
			}
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}

		if err == io.EOF {
			if len(data) > 0 {
				return decodeFrame(data)
			}
			return WireFrame{}, io.EOF
		}
	}
}

func decodeFrame(data []string) (WireFrame, error) {
	raw := strings.Join(data, "\n")
	var f WireFrame
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return WireFrame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Event.StepID == "" {
		return WireFrame{}, fmt.Errorf("%w: missing stepId", ErrMalformedFrame)
	}
	return f, nil
}
