// Package unifi implements the source interface for UniFi OS consoles
// (UDM, UCG, UXG) and classic UniFi Network controllers.
package unifi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"gitlab.bluewillows.net/root/wansync/pkg/httputil"
	"gitlab.bluewillows.net/root/wansync/pkg/provider"
	"gitlab.bluewillows.net/root/wansync/pkg/source"
)

// SourceName identifies this source in logs and configuration.
const SourceName = "unifi"

// maxResponseSize caps how much of a response body is read. Device documents
// for larger sites run to a few hundred kilobytes.
const maxResponseSize = 8 << 20

// gatewayTypes are the device types that carry the WAN interface.
var gatewayTypes = map[string]bool{
	"ugw": true,
	"udm": true,
	"ucg": true,
}

var errNoGateway = errors.New("no gateway device found")

// Source reads the WAN addresses from a UniFi console.
type Source struct {
	config     Config
	timeout    time.Duration
	userAgent  string
	logger     *slog.Logger
	newClient  func() *http.Client
	newBackOff func() backoff.BackOff
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

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent sent to the console.
func WithUserAgent(ua string) Option {
	return func(s *Source) {
		s.userAgent = ua
	}
}

// WithHTTPClientFunc overrides how the HTTP client for each session is
// built. The returned client must keep cookies for password logins.
func WithHTTPClientFunc(fn func() *http.Client) Option {
	return func(s *Source) {
		if fn != nil {
			s.newClient = fn
		}
	}
}

// WithBackOff overrides the retry policy between attempts.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(s *Source) {
		if fn != nil {
			s.newBackOff = fn
		}
	}
}

// New creates a UniFi source.
func New(config *Config, opts ...Option) (*Source, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := *config
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Source{
		config:  cfg,
		timeout: httputil.DefaultTimeout,
		logger:  slog.Default(),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.newClient == nil {
		s.newClient = func() *http.Client {
			return httputil.NewClient(&httputil.ClientConfig{
				Timeout:       s.timeout,
				TLSSkipVerify: !s.config.VerifySSL,
				CookieJar:     true,
				UserAgent:     s.userAgent,
				Logger:        s.logger,
			})
		}
	}

	if !cfg.VerifySSL {
		s.logger.Warn("TLS certificate verification disabled for UniFi console",
			slog.String("url", cfg.URL),
		)
	}

	return s, nil
}

// Ensure Source implements source.Source.
var _ source.Source = (*Source)(nil)

// Name returns the source identifier.
func (s *Source) Name() string {
	return SourceName
}

// Open logs in and returns the session as a source.Session.
func (s *Source) Open(ctx context.Context) (source.Session, error) {
	return s.Login(ctx)
}

// Ping checks that the console answers HTTP without logging in. Any response
// below 500 counts as reachable.
func (s *Source) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.URL+"/", nil)
	if err != nil {
		return fmt.Errorf("creating ping request: %w", err)
	}

	resp, err := s.newClient().Do(req)
	if err != nil {
		return fmt.Errorf("unifi console unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("unifi console unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// Login establishes a session with the console. With an API key configured
// no login request is made. Rejected credentials are not retried.
func (s *Source) Login(ctx context.Context) (*Session, error) {
	sess := &Session{
		source: s,
		client: s.newClient(),
		apiKey: s.config.APIKey,
	}

	if sess.apiKey != "" {
		s.logger.Debug("using UniFi API key, skipping login")
		return sess, nil
	}

	payload, err := json.Marshal(loginRequest{
		Username: s.config.Username,
		Password: s.config.Password,
	})
	if err != nil {
		return nil, source.AuthError(SourceName, fmt.Errorf("marshaling login request: %w", err))
	}

	err = s.retry(ctx, "login", func() error {
		return sess.login(ctx, payload)
	})
	if err != nil {
		return nil, source.AuthError(SourceName, err)
	}

	s.logger.Debug("authenticated with UniFi console",
		slog.String("url", s.config.URL),
		slog.Bool("csrf", sess.csrf != ""),
	)

	return sess, nil
}

// retry runs op until it succeeds, returns a permanent error, or the retry
// budget is spent.
func (s *Source) retry(ctx context.Context, what string, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), uint64(s.config.Retries)), ctx)
	return backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		s.logger.Warn("UniFi request failed, retrying",
			slog.String("request", what),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// deviceResponse is the envelope of the stat/device endpoint. Device
// documents are kept raw because the WAN key is configurable.
type deviceResponse struct {
	Meta struct {
		RC  string `json:"rc"`
		Msg string `json:"msg"`
	} `json:"meta"`
	Data []map[string]json.RawMessage `json:"data"`
}

type wanInterface struct {
	IP   string          `json:"ip"`
	IPv6 json.RawMessage `json:"ipv6"`
}

// Session is a logged-in view of the console. It is used for a single pass.
type Session struct {
	source *Source
	client *http.Client
	apiKey string

	mu     sync.Mutex
	csrf   string
	closed bool
}

// Ensure Session implements source.Session.
var _ source.Session = (*Session)(nil)

func (s *Session) login(ctx context.Context, payload []byte) error {
	resp, err := s.do(ctx, http.MethodPost, s.source.config.loginPath(), payload)
	if err != nil {
		return fmt.Errorf("executing login request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return backoff.Permanent(fmt.Errorf("credentials rejected (status %d)", resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError:
		return backoff.Permanent(fmt.Errorf("login failed with status %d: %s", resp.StatusCode, truncate(body)))
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("login failed with status %d: %s", resp.StatusCode, truncate(body))
	}

	return nil
}

// WANStatus reads the gateway device and returns its WAN addresses.
func (s *Session) WANStatus(ctx context.Context) (source.Observation, error) {
	var obs source.Observation

	err := s.source.retry(ctx, "stat/device", func() error {
		var err error
		obs, err = s.fetch(ctx)
		return err
	})
	if err != nil {
		return source.Observation{}, source.FetchError(SourceName, err)
	}

	return obs, nil
}

func (s *Session) fetch(ctx context.Context) (source.Observation, error) {
	cfg := s.source.config

	resp, err := s.do(ctx, http.MethodGet, cfg.devicePath(), nil)
	if err != nil {
		return source.Observation{}, fmt.Errorf("executing device request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return source.Observation{}, fmt.Errorf("reading device response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("device request failed with status %d: %s", resp.StatusCode, truncate(body))
		if resp.StatusCode < http.StatusInternalServerError {
			return source.Observation{}, backoff.Permanent(err)
		}
		return source.Observation{}, err
	}

	var devices deviceResponse
	if err := json.Unmarshal(body, &devices); err != nil {
		return source.Observation{}, backoff.Permanent(fmt.Errorf("parsing device response: %w", err))
	}
	if devices.Meta.RC != "" && devices.Meta.RC != "ok" {
		return source.Observation{}, backoff.Permanent(fmt.Errorf("device request rejected: %s", devices.Meta.Msg))
	}

	wan, found, err := gatewayWAN(devices.Data, cfg.WAN)
	if err != nil {
		return source.Observation{}, backoff.Permanent(err)
	}
	if !found {
		s.source.logger.Warn("gateway reports no WAN interface with the configured key, check UNIFI_WAN",
			slog.String("wan", cfg.WAN),
		)
		return source.Observation{}, nil
	}

	return observe(wan), nil
}

// gatewayWAN returns the WAN interface of the first gateway-class device.
// found is false when the gateway has no such interface.
func gatewayWAN(devices []map[string]json.RawMessage, key string) (wan wanInterface, found bool, err error) {
	for _, dev := range devices {
		var devType string
		if raw, ok := dev["type"]; ok {
			if err := json.Unmarshal(raw, &devType); err != nil {
				continue
			}
		}
		if !gatewayTypes[devType] {
			continue
		}

		raw, ok := dev[key]
		if !ok || string(raw) == "null" {
			return wanInterface{}, false, nil
		}
		if err := json.Unmarshal(raw, &wan); err != nil {
			return wanInterface{}, false, fmt.Errorf("parsing %s interface: %w", key, err)
		}
		return wan, true, nil
	}
	return wanInterface{}, false, errNoGateway
}

// observe converts a WAN interface into an Observation. A malformed literal
// fails only its own family.
func observe(wan wanInterface) source.Observation {
	var obs source.Observation

	if wan.IP != "" {
		addr, err := provider.CanonicalAddress(provider.RecordTypeA, wan.IP)
		if err != nil {
			obs.Fail(source.FamilyIPv4, source.FetchError(SourceName, err))
		} else {
			obs.Set(source.FamilyIPv4, addr)
		}
	}

	addr, err := firstGlobalIPv6(wan.IPv6)
	switch {
	case err != nil:
		obs.Fail(source.FamilyIPv6, source.FetchError(SourceName, err))
	case addr != "":
		obs.Set(source.FamilyIPv6, addr)
	}

	return obs
}

// firstGlobalIPv6 picks the first public address from the ipv6 field, which
// firmware reports either as a list or as a single string. Link-local and
// ULA addresses are skipped. An error is returned only when entries were
// present but none of them parsed.
func firstGlobalIPv6(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return "", fmt.Errorf("parsing ipv6 field: %w", err)
		}
		list = []string{single}
	}

	var parsed int
	var firstErr error
	for _, entry := range list {
		if entry == "" {
			continue
		}
		canonical, err := provider.CanonicalAddress(provider.RecordTypeAAAA, entry)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		parsed++
		addr := netip.MustParseAddr(canonical)
		if addr.IsGlobalUnicast() && !addr.IsPrivate() {
			return canonical, nil
		}
	}

	if parsed == 0 && firstErr != nil {
		return "", firstErr
	}
	return "", nil
}

// Close logs out. Sessions authenticated by API key have nothing to release.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.apiKey != "" {
		return nil
	}

	resp, err := s.do(ctx, http.MethodPost, s.source.config.logoutPath(), nil)
	if err != nil {
		return fmt.Errorf("unifi logout: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unifi logout failed with status %d", resp.StatusCode)
	}

	s.source.logger.Debug("logged out of UniFi console")
	return nil
}

// do sends a request with the session's credentials attached.
func (s *Session) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.source.config.URL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("X-API-KEY", s.apiKey)
	}

	s.mu.Lock()
	csrf := s.csrf
	s.mu.Unlock()
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	s.captureCSRF(resp)
	return resp, nil
}

// captureCSRF stores the token UniFi OS hands out on login and rotates on
// later responses.
func (s *Session) captureCSRF(resp *http.Response) {
	token := resp.Header.Get("X-Updated-CSRF-Token")
	if token == "" {
		token = resp.Header.Get("X-CSRF-Token")
	}
	if token == "" {
		return
	}
	s.mu.Lock()
	s.csrf = token
	s.mu.Unlock()
}

func truncate(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
