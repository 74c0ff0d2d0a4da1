// Package web gathers evidence for claims: search, fetch, snippet, classify.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Result is one search hit
type Result struct {
	URL     string
	Title   string
	Snippet string
}

// Searcher finds candidate sources for a query
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// DuckDuckGo queries the DuckDuckGo HTML endpoint, which needs no API key
type DuckDuckGo struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
}

// NewDuckDuckGo creates a searcher against endpoint (the html.duckduckgo.com form URL)
func NewDuckDuckGo(endpoint, userAgent string, httpClient *http.Client) *DuckDuckGo {
	return &DuckDuckGo{endpoint: endpoint, userAgent: userAgent, httpClient: httpClient}
}

func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse search URL: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: unexpected status %d", resp.StatusCode)
	}

	return parseResults(io.LimitReader(resp.Body, 4<<20), limit)
}

// parseResults walks the result page collecting a.result__a links and their snippets
func parseResults(r io.Reader, limit int) ([]Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}

	var results []Result
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if limit > 0 && len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			switch {
			case hasClass(n, "result__a"):
				target := resolveRedirect(attr(n, "href"))
				if target != "" && !seen[target] {
					seen[target] = true
					results = append(results, Result{URL: target, Title: textOf(n)})
				}
				return
			case hasClass(n, "result__snippet") && len(results) > 0:
				last := &results[len(results)-1]
				if last.Snippet == "" {
					last.Snippet = textOf(n)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return results, nil
}

// resolveRedirect unwraps //duckduckgo.com/l/?uddg=<target> links
func resolveRedirect(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
