// Package llm talks to chat models. Every provider implements Client;
// cross-cutting behaviour (caching, rate limiting, logging) is layered on
// with Wrap.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrSchema is returned when a structured response cannot be decoded
var ErrSchema = errors.New("model response does not match the expected schema")

// Request is a single prompt sent to a model
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32

	// JSON asks the provider for a single JSON object as output
	JSON bool
}

// Client is a chat model provider
type Client interface {
	// Name returns the provider name
	Name() string

	// Complete returns the full response text
	Complete(ctx context.Context, req Request) (string, error)

	// Stream calls onToken for each text fragment as it arrives and returns
	// the concatenated text
	Stream(ctx context.Context, req Request, onToken func(string)) (string, error)
}

// Structured runs req in JSON mode and decodes the response into out
func Structured(ctx context.Context, c Client, req Request, out any) error {
	req.JSON = true
	text, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}
	return DecodeJSON(text, out)
}

// DecodeJSON decodes the JSON object in text into out, tolerating markdown
// code fences and prose around the object
func DecodeJSON(text string, out any) error {
	body := strings.TrimSpace(text)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")

	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start < 0 || end < start {
		return fmt.Errorf("%w: no JSON object in response", ErrSchema)
	}

	if err := json.Unmarshal([]byte(body[start:end+1]), out); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

const jsonInstruction = "Respond with a single JSON object and nothing else."

func withDefaults(req Request, maxTokens int, temperature float32) Request {
	if req.MaxTokens == 0 {
		req.MaxTokens = maxTokens
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = 1000
	}
	if req.Temperature == 0 {
		req.Temperature = temperature
	}
	return req
}
