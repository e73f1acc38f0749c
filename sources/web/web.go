// Package web implements an address source backed by plain-text
// "what is my IP" HTTP endpoints.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/wansync/pkg/httputil"
	"gitlab.bluewillows.net/root/wansync/pkg/provider"
	"gitlab.bluewillows.net/root/wansync/pkg/source"
)

// SourceName identifies this source in logs and configuration.
const SourceName = "web"

// Default echo endpoints.
const (
	DefaultIPv4URL = "https://checkip.amazonaws.com"
	DefaultIPv6URL = "https://api6.ipify.org"
)

// An IP literal never needs more than this.
const maxBodySize = 256

// Config holds the echo endpoints. An empty URL disables that family.
type Config struct {
	IPv4URL string
	IPv6URL string
}

// Validate checks that at least one endpoint is configured and well formed.
func (c *Config) Validate() error {
	var errs []string

	if c.IPv4URL == "" && c.IPv6URL == "" {
		errs = append(errs, "at least one of IPV4_URL or IPV6_URL is required")
	}
	for _, raw := range []string{c.IPv4URL, c.IPv6URL} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Sprintf("URL %q must be an http(s) URL with a host", raw))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("web source config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Source asks an external service which address our requests come from.
// IPv4 requests are dialed over tcp4 and IPv6 requests over tcp6, so each
// answer reflects the family asked about.
type Source struct {
	config  Config
	clients map[source.Family]*http.Client
	logger  *slog.Logger
}

// Option is a functional option for configuring Source.
type Option func(*options)

type options struct {
	timeout   time.Duration
	userAgent string
	logger    *slog.Logger
	clients   map[source.Family]*http.Client
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// WithHTTPClient replaces the client used for one family.
func WithHTTPClient(family source.Family, client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.clients[family] = client
		}
	}
}

// New creates a web source.
func New(config *Config, opts ...Option) (*Source, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := &options{
		logger:  slog.Default(),
		clients: make(map[source.Family]*http.Client),
	}
	for _, opt := range opts {
		opt(o)
	}

	networks := map[source.Family]string{
		source.FamilyIPv4: "tcp4",
		source.FamilyIPv6: "tcp6",
	}
	for family, network := range networks {
		if o.clients[family] != nil {
			continue
		}
		o.clients[family] = httputil.NewClient(&httputil.ClientConfig{
			Timeout:   o.timeout,
			Network:   network,
			UserAgent: o.userAgent,
			Logger:    o.logger,
		})
	}

	return &Source{
		config:  *config,
		clients: o.clients,
		logger:  o.logger,
	}, nil
}

// Ensure Source implements source.Source.
var _ source.Source = (*Source)(nil)

// Name returns the source identifier.
func (s *Source) Name() string {
	return SourceName
}

// Open returns a session. No authentication is involved.
func (s *Source) Open(_ context.Context) (source.Session, error) {
	return &session{source: s}, nil
}

// Ping succeeds when any configured endpoint answers with an address.
func (s *Source) Ping(ctx context.Context) error {
	var errs []error
	for _, ep := range s.endpoints() {
		if _, err := s.lookup(ctx, ep.family, ep.url); err != nil {
			errs = append(errs, err)
			continue
		}
		return nil
	}
	return errors.Join(errs...)
}

type endpoint struct {
	family source.Family
	url    string
}

func (s *Source) endpoints() []endpoint {
	var eps []endpoint
	if s.config.IPv4URL != "" {
		eps = append(eps, endpoint{source.FamilyIPv4, s.config.IPv4URL})
	}
	if s.config.IPv6URL != "" {
		eps = append(eps, endpoint{source.FamilyIPv6, s.config.IPv6URL})
	}
	return eps
}

// lookup fetches one endpoint and returns the canonical address it reports.
func (s *Source) lookup(ctx context.Context, family source.Family, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := s.clients[family].Do(req)
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("reading response from %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned status %d", rawURL, resp.StatusCode)
	}

	recordType := provider.RecordTypeA
	if family == source.FamilyIPv6 {
		recordType = provider.RecordTypeAAAA
	}
	addr, err := provider.CanonicalAddress(recordType, string(body))
	if err != nil {
		return "", fmt.Errorf("%s: %w", rawURL, err)
	}
	return addr, nil
}

type session struct {
	source *Source
}

// WANStatus queries each configured endpoint. An IPv6 endpoint that cannot
// be dialed leaves the family unset, since the host has no IPv6 path. An
// error is returned only when no family was observed and at least one failed.
func (s *session) WANStatus(ctx context.Context) (source.Observation, error) {
	var obs source.Observation
	var errs []error
	observed := 0

	for _, ep := range s.source.endpoints() {
		addr, err := s.source.lookup(ctx, ep.family, ep.url)
		if err != nil {
			if ep.family == source.FamilyIPv6 && source.IsUnreachable(err) {
				s.source.logger.Info("no IPv6 path to address endpoint, treating family as not configured",
					slog.String("url", ep.url),
					slog.String("error", err.Error()),
				)
				continue
			}
			s.source.logger.Debug("address lookup failed",
				slog.String("family", string(ep.family)),
				slog.String("error", err.Error()),
			)
			obs.Fail(ep.family, source.FetchError(SourceName, err))
			errs = append(errs, err)
			continue
		}
		obs.Set(ep.family, addr)
		observed++
	}

	if observed == 0 && len(errs) > 0 {
		return source.Observation{}, source.FetchError(SourceName, errors.Join(errs...))
	}
	return obs, nil
}

func (s *session) Close(context.Context) error {
	return nil
}
