// Package opendns implements an address source that asks OpenDNS resolvers
// which address a query came from (the myip.opendns.com echo name).
package opendns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"gitlab.bluewillows.net/root/wansync/pkg/provider"
	"gitlab.bluewillows.net/root/wansync/pkg/source"
)

// SourceName identifies this source in logs and configuration.
const SourceName = "opendns"

// Defaults point at resolver1.opendns.com.
const (
	DefaultIPv4Server = "208.67.222.222:53"
	DefaultIPv6Server = "[2620:119:35::35]:53"
	DefaultHostname   = "myip.opendns.com."
	DefaultTimeout    = 5 * time.Second
)

// Config holds resolver addresses. An empty server disables that family.
type Config struct {
	IPv4Server string
	IPv6Server string
	Hostname   string
	Timeout    time.Duration
}

// Validate checks that at least one resolver is configured as host:port.
func (c *Config) Validate() error {
	var errs []string

	if c.IPv4Server == "" && c.IPv6Server == "" {
		errs = append(errs, "at least one of IPV4_SERVER or IPV6_SERVER is required")
	}
	for _, server := range []string{c.IPv4Server, c.IPv6Server} {
		if server == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(server); err != nil {
			errs = append(errs, fmt.Sprintf("server %q must be host:port", server))
		}
	}
	if c.Timeout < 0 {
		errs = append(errs, "TIMEOUT must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("opendns config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// exchanger sends one DNS message. *dns.Client satisfies it.
type exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, address string) (*dns.Msg, time.Duration, error)
}

// Source resolves the echo name with A against the IPv4 resolver and AAAA
// against the IPv6 resolver.
type Source struct {
	config    Config
	dnsClient exchanger
	logger    *slog.Logger
}

// Option is a functional option for configuring Source.
type Option func(*Source)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an OpenDNS source.
func New(config *Config, opts ...Option) (*Source, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cfg := *config
	if cfg.Hostname == "" {
		cfg.Hostname = DefaultHostname
	}
	cfg.Hostname = dns.Fqdn(cfg.Hostname)
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	s := &Source{
		config:    cfg,
		dnsClient: &dns.Client{Net: "udp", Timeout: cfg.Timeout},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Debug("OpenDNS source initialized",
		slog.String("ipv4_server", cfg.IPv4Server),
		slog.String("ipv6_server", cfg.IPv6Server),
		slog.String("hostname", cfg.Hostname),
	)

	return s, nil
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

// Ping succeeds when any configured resolver answers the echo query.
func (s *Source) Ping(ctx context.Context) error {
	var errs []error
	for _, q := range s.queries() {
		if _, err := s.resolve(ctx, q); err != nil {
			errs = append(errs, err)
			continue
		}
		return nil
	}
	return errors.Join(errs...)
}

type query struct {
	family source.Family
	server string
	qtype  uint16
}

func (s *Source) queries() []query {
	var qs []query
	if s.config.IPv4Server != "" {
		qs = append(qs, query{source.FamilyIPv4, s.config.IPv4Server, dns.TypeA})
	}
	if s.config.IPv6Server != "" {
		qs = append(qs, query{source.FamilyIPv6, s.config.IPv6Server, dns.TypeAAAA})
	}
	return qs
}

// resolve sends one echo query and returns the canonical address answered.
func (s *Source) resolve(ctx context.Context, q query) (string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(s.config.Hostname, q.qtype)
	msg.RecursionDesired = false

	resp, rtt, err := s.dnsClient.ExchangeContext(ctx, msg, q.server)
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", q.server, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("%s returned %s", q.server, dns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		var value string
		recordType := provider.RecordTypeA
		switch v := rr.(type) {
		case *dns.A:
			value = v.A.String()
		case *dns.AAAA:
			value = v.AAAA.String()
			recordType = provider.RecordTypeAAAA
		default:
			continue
		}
		if (q.qtype == dns.TypeAAAA) != (recordType == provider.RecordTypeAAAA) {
			continue
		}

		addr, err := provider.CanonicalAddress(recordType, value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", q.server, err)
		}

		s.logger.Debug("resolved echo name",
			slog.String("server", q.server),
			slog.String("type", dns.TypeToString[q.qtype]),
			slog.String("address", addr),
			slog.Duration("rtt", rtt),
		)
		return addr, nil
	}

	return "", fmt.Errorf("%s returned no %s answer for %s", q.server, dns.TypeToString[q.qtype], s.config.Hostname)
}

type session struct {
	source *Source
}

// WANStatus resolves each configured family. An IPv6 resolver that cannot be
// dialed leaves the family unset, since the host has no IPv6 path. An error
// is returned only when no family was observed and at least one failed.
func (s *session) WANStatus(ctx context.Context) (source.Observation, error) {
	var obs source.Observation
	var errs []error
	observed := 0

	for _, q := range s.source.queries() {
		addr, err := s.source.resolve(ctx, q)
		if err != nil {
			if q.family == source.FamilyIPv6 && source.IsUnreachable(err) {
				s.source.logger.Info("no IPv6 path to resolver, treating family as not configured",
					slog.String("server", q.server),
					slog.String("error", err.Error()),
				)
				continue
			}
			obs.Fail(q.family, source.FetchError(SourceName, err))
			errs = append(errs, err)
			continue
		}
		obs.Set(q.family, addr)
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
