package claude

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

const (
	DefaultRequestTimeout = 120 * time.Second
	DefaultConnectTimeout = 30 * time.Second
)

// NormalizeProxyURL rewrites the socks:// alias to the socks5:// scheme the
// dialer understands. Other URLs are returned trimmed but otherwise unchanged.
func NormalizeProxyURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(raw, "socks://"); ok {
		return "socks5://" + rest
	}
	return raw
}

// NewHTTPClient builds the HTTP client used for model calls. requestTimeout
// bounds the whole call; connectTimeout bounds connection establishment,
// including the hop to the proxy. An empty proxyURL keeps the environment's
// proxy settings.
func NewHTTPClient(proxyURL string, requestTimeout, connectTimeout time.Duration) (*http.Client, error) {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}

	dialer := &net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = connectTimeout

	if proxyURL != "" {
		u, err := url.Parse(NormalizeProxyURL(proxyURL))
		if err != nil {
			return nil, fmt.Errorf("parsing proxy URL: %w", err)
		}
		switch u.Scheme {
		case "socks5", "socks5h":
			d, err := proxy.FromURL(u, dialer)
			if err != nil {
				return nil, fmt.Errorf("creating SOCKS5 dialer: %w", err)
			}
			cd, ok := d.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("SOCKS5 dialer for %s does not support contexts", u.Host)
			}
			transport.Proxy = nil
			transport.DialContext = cd.DialContext
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
		}
	}

	return &http.Client{
		Timeout:   requestTimeout,
		Transport: transport,
	}, nil
}
