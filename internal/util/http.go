package util

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// NewProxyFunc creates a proxy function from explicit proxy URLs.
// With none configured it defers to HTTP_PROXY / HTTPS_PROXY / NO_PROXY.
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	bypass := splitHosts(noProxy)

	return func(req *http.Request) (*url.URL, error) {
		if bypass[req.URL.Hostname()] {
			return nil, nil
		}
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

// NewHTTPClient builds the client used for outbound web lookups
func NewHTTPClient(timeout time.Duration, httpProxy, httpsProxy, noProxy string) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = NewProxyFunc(httpProxy, httpsProxy, noProxy)

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

func splitHosts(list string) map[string]bool {
	hosts := make(map[string]bool)
	for _, h := range strings.Split(list, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts[h] = true
		}
	}
	return hosts
}
