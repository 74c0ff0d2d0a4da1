package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/clarifai/internal/extract"
	"github.com/ppiankov/clarifai/internal/util"
	"github.com/ppiankov/clarifai/internal/worker"
)

// ErrDisallowed is returned when robots.txt forbids fetching a page
var ErrDisallowed = errors.New("disallowed by robots.txt")

// fetchSleepFunc is replaced in tests
var fetchSleepFunc = time.Sleep

const maxAttempts = 3

// Page is a fetched document reduced to its visible text
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Text        string
}

// Fetcher retrieves pages politely: robots.txt, per-host rate limits, size limits
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker
	limiter    *worker.Limiter
}

// NewFetcher creates a fetcher. robots and limiter may be nil.
func NewFetcher(httpClient *http.Client, userAgent string, maxBytes int64, robots *util.RobotsChecker, limiter *worker.Limiter) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}
	return &Fetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		maxBytes:   maxBytes,
		robots:     robots,
		limiter:    limiter,
	}
}

// Fetch retrieves rawURL, retrying transient failures
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	var delay time.Duration
	if f.robots != nil {
		allowed, crawlDelay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
		}
		delay = crawlDelay
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			fetchSleepFunc(time.Duration(attempt) * 500 * time.Millisecond)
		}

		if f.limiter != nil {
			host, _ := hostOf(rawURL)
			if err := f.limiter.WaitWithDelay(ctx, host, delay); err != nil {
				return nil, err
			}
		}

		page, retry, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*Page, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	text := string(body)
	if strings.Contains(contentType, "html") || extract.LooksLikeHTML(text) {
		if text, err = extract.VisibleText(text); err != nil {
			return nil, false, fmt.Errorf("extract text: %w", err)
		}
	}

	return &Page{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Text:        text,
	}, false, nil
}
