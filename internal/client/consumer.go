// Package client consumes the clarify event stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/clarifai/internal/model"
	"github.com/ppiankov/clarifai/internal/stream"
)

var (
	// ErrUnexpectedResponse is returned when the server does not answer with an event stream
	ErrUnexpectedResponse = errors.New("unexpected response")

	// ErrStreamFailed is returned when the server reports a failed run
	ErrStreamFailed = errors.New("analysis failed")
)

// Handlers are the callbacks invoked while a stream is read. All of them are
// optional and run on the goroutine calling Stream, in arrival order.
type Handlers struct {
	OnEvent    func(ev model.WireEvent)
	OnToken    func(token string)
	OnComplete func()
	OnError    func(err error)
	OnClose    func()
}

// Consumer posts content to a clarify endpoint and reads the resulting stream
type Consumer struct {
	endpoint string
	http     *http.Client
	log      *zap.Logger
}

// NewConsumer creates a consumer for the clarify endpoint at url
func NewConsumer(url string, httpClient *http.Client, log *zap.Logger) *Consumer {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{endpoint: url, http: httpClient, log: log.Named("client")}
}

// Stream analyzes content and dispatches the frames to h until the terminal
// frame, a transport error or cancellation. OnClose is called exactly once.
func (c *Consumer) Stream(ctx context.Context, content string, h Handlers) (err error) {
	defer func() {
		if err != nil && h.OnError != nil {
			h.OnError(err)
		}
		if h.OnClose != nil {
			h.OnClose()
		}
	}()

	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", stream.ContentType)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	c.log.Debug("stream opened", zap.String("run_id", resp.Header.Get("X-Clarifai-Run")))

	dec := stream.NewDecoder(resp.Body)
	for {
		f, err := dec.Next()
		switch {
		case errors.Is(err, stream.ErrMalformedFrame):
			c.log.Warn("skipping malformed frame", zap.Error(err))
			continue
		case err == io.EOF:
			return fmt.Errorf("stream closed before completion: %w", io.ErrUnexpectedEOF)
		case err != nil:
			return fmt.Errorf("read stream: %w", err)
		}

		switch f.Event.StepID {
		case model.StepToken:
			if h.OnToken != nil {
				h.OnToken(tokenOf(f.Event))
			}
		case model.StepDone:
			if h.OnComplete != nil {
				h.OnComplete()
			}
			return nil
		case model.StepError:
			msg := f.Event.Label
			if p, derr := f.Event.Decode(); derr == nil {
				if ep, ok := p.(model.ErrorPayload); ok && ep.Error != "" {
					msg = ep.Error
				}
			}
			return fmt.Errorf("%w: %s", ErrStreamFailed, msg)
		default:
			if h.OnEvent != nil {
				h.OnEvent(f.Event)
			}
		}
	}
}

func checkResponse(resp *http.Response) error {
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if resp.StatusCode/100 == 2 && mediaType == stream.ContentType {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(detail))
	if json.Unmarshal(detail, &apiErr) == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}
	return fmt.Errorf("%w: status %d: %s", ErrUnexpectedResponse, resp.StatusCode, msg)
}

// tokenOf reads the fragment from the payload, falling back to the label
func tokenOf(ev model.WireEvent) string {
	if p, err := ev.Decode(); err == nil {
		if tok, ok := p.(model.TokenPayload); ok && tok != "" {
			return string(tok)
		}
	}
	return ev.Label
}
