// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/ppiankov/clarifai/internal/llm"
)

// Fake answers requests with Respond. Streams emit the response word by word.
type Fake struct {
	Respond func(req llm.Request) (string, error)

	mu    sync.Mutex
	calls []llm.Request
}

// Static returns a Fake that always answers text
func Static(text string) *Fake {
	return &Fake{Respond: func(llm.Request) (string, error) { return text, nil }}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.record(req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.Respond(req)
}

func (f *Fake) Stream(ctx context.Context, req llm.Request, onToken func(string)) (string, error) {
	f.record(req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := f.Respond(req)
	if err != nil {
		return "", err
	}
	for _, tok := range SplitTokens(text) {
		onToken(tok)
	}
	return text, nil
}

// Calls returns a copy of the requests received so far
func (f *Fake) Calls() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.calls...)
}

func (f *Fake) record(req llm.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
}

// SplitTokens splits text into fragments that concatenate back to text
func SplitTokens(text string) []string {
	var out []string
	for len(text) > 0 {
		i := strings.IndexByte(text[1:], ' ')
		if i < 0 {
			out = append(out, text)
			break
		}
		out = append(out, text[:i+1])
		text = text[i+1:]
	}
	return out
}
