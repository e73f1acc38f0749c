// Package httputil provides the shared HTTP client used by address sources
// and the DNS provider.
package httputil

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// Default HTTP client configuration values.
const (
	// DefaultTimeout bounds every request so a hung call cannot stall a pass.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent is used when no custom user agent is specified.
	DefaultUserAgent = "wansync/1.0"
)

// ClientConfig contains configuration for creating an HTTP client.
type ClientConfig struct {
	// Timeout is the whole-request timeout. Defaults to 10 seconds.
	Timeout time.Duration

	// TLSSkipVerify disables certificate verification. Gateways commonly
	// ship self-signed certificates.
	TLSSkipVerify bool

	// Network pins dialing to "tcp4" or "tcp6". Empty means either.
	Network string

	// DialTimeout bounds connection setup on a pinned network. Defaults to
	// half of Timeout so a dead route surfaces as a dial error rather than
	// the whole-request timeout.
	DialTimeout time.Duration

	// CookieJar gives the client a cookie jar so session cookies set by a
	// login response are sent on later requests.
	CookieJar bool

	// UserAgent is the User-Agent header to set on requests.
	UserAgent string

	// Logger enables debug logging for HTTP requests.
	// If nil, no debug logging is performed.
	Logger *slog.Logger
}

// userAgentTransport wraps an http.RoundTripper to add User-Agent header
// and optionally log requests at debug level.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
	logger    *slog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" && t.userAgent != "" {
		// RoundTrippers must not modify the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)

	if t.logger != nil {
		attrs := []any{
			slog.String("method", req.Method),
			slog.String("url", req.URL.Redacted()),
			slog.Duration("elapsed", time.Since(start)),
		}
		if resp != nil {
			attrs = append(attrs, slog.Int("status", resp.StatusCode))
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		t.logger.Debug("HTTP request", attrs...)
	}

	return resp, err
}

// NewClient creates an HTTP client with the specified configuration.
// If cfg is nil, defaults are used (10s timeout, TLS verification enabled).
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	base := http.DefaultTransport.(*http.Transport).Clone()

	if cfg.TLSSkipVerify {
		base.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // Intentional: user explicitly requested skip
		}
	}

	if cfg.Network != "" {
		network := cfg.Network
		dialer := &net.Dialer{Timeout: dialTimeout(cfg.DialTimeout, timeout), KeepAlive: 30 * time.Second}
		base.DialContext = func(ctx context.Context, _, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		}
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &userAgentTransport{
			base:      base,
			userAgent: userAgent,
			logger:    cfg.Logger,
		},
	}

	if cfg.CookieJar {
		// cookiejar.New only fails for a broken PublicSuffixList; nil never does.
		jar, _ := cookiejar.New(nil)
		client.Jar = jar
	}

	return client
}

// dialTimeout keeps the dial budget strictly inside the request budget.
func dialTimeout(dial, request time.Duration) time.Duration {
	if dial <= 0 || dial >= request {
		return request / 2
	}
	return dial
}

// DefaultClient returns a new HTTP client with default settings.
// Equivalent to NewClient(nil).
func DefaultClient() *http.Client {
	return NewClient(nil)
}
