package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/clarifai/internal/cache"
	"github.com/ppiankov/clarifai/internal/worker"
)

// Middleware decorates a Client with a cross-cutting concern
type Middleware func(Client) Client

// Wrap applies middlewares in left-to-right order: Wrap(inner, A, B) is A(B(inner))
func Wrap(inner Client, mws ...Middleware) Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Caching --------

// WithCache answers repeated identical requests from c. A cached stream is
// replayed as a single fragment.
func WithCache(c cache.Cache, ttl time.Duration) Middleware {
	return func(next Client) Client {
		return &cached{next: next, cache: c, ttl: ttl}
	}
}

type cached struct {
	next  Client
	cache cache.Cache
	ttl   time.Duration
}

func (c *cached) Name() string { return c.next.Name() }

func (c *cached) Complete(ctx context.Context, req Request) (string, error) {
	key := c.key(req)
	if val, ok := c.cache.Get(key); ok {
		return string(val), nil
	}

	text, err := c.next.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	_ = c.cache.Set(key, []byte(text), c.ttl)
	return text, nil
}

func (c *cached) Stream(ctx context.Context, req Request, onToken func(string)) (string, error) {
	key := c.key(req)
	if val, ok := c.cache.Get(key); ok {
		if len(val) > 0 {
			onToken(string(val))
		}
		return string(val), nil
	}

	text, err := c.next.Stream(ctx, req, onToken)
	if err != nil {
		return text, err
	}
	_ = c.cache.Set(key, []byte(text), c.ttl)
	return text, nil
}

func (c *cached) key(req Request) string {
	return cache.Key(
		c.next.Name(),
		req.Model,
		req.System,
		req.Prompt,
		fmt.Sprintf("%d/%.3f/%t", req.MaxTokens, req.Temperature, req.JSON),
	)
}

// -------- Rate Limiting --------

// WithRateLimit waits on l before each call, keyed by model name
func WithRateLimit(l *worker.Limiter) Middleware {
	return func(next Client) Client {
		return &rateLimited{next: next, limiter: l}
	}
}

type rateLimited struct {
	next    Client
	limiter *worker.Limiter
}

func (c *rateLimited) Name() string { return c.next.Name() }

func (c *rateLimited) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx, c.next.Name()+"/"+req.Model); err != nil {
		return "", err
	}
	return c.next.Complete(ctx, req)
}

func (c *rateLimited) Stream(ctx context.Context, req Request, onToken func(string)) (string, error) {
	if err := c.limiter.Wait(ctx, c.next.Name()+"/"+req.Model); err != nil {
		return "", err
	}
	return c.next.Stream(ctx, req, onToken)
}

// -------- Logging --------

// WithLogging logs each call's model, duration and outcome
func WithLogging(log *zap.Logger) Middleware {
	return func(next Client) Client {
		return &logged{next: next, log: log.Named("llm")}
	}
}

type logged struct {
	next Client
	log  *zap.Logger
}

func (c *logged) Name() string { return c.next.Name() }

func (c *logged) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := c.next.Complete(ctx, req)
	c.record("complete", req, start, len(text), err)
	return text, err
}

func (c *logged) Stream(ctx context.Context, req Request, onToken func(string)) (string, error) {
	start := time.Now()
	fragments := 0
	text, err := c.next.Stream(ctx, req, func(tok string) {
		fragments++
		onToken(tok)
	})
	c.record("stream", req, start, len(text), err, zap.Int("fragments", fragments))
	return text, err
}

func (c *logged) record(call string, req Request, start time.Time, size int, err error, extra ...zap.Field) {
	fields := append([]zap.Field{
		zap.String("provider", c.next.Name()),
		zap.String("call", call),
		zap.String("model", req.Model),
		zap.Bool("json", req.JSON),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.Int("response_bytes", size),
	}, extra...)

	if err != nil {
		c.log.Warn("model call failed", append(fields, zap.Error(err))...)
		return
	}
	c.log.Debug("model call", fields...)
}
