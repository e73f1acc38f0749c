package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"syscall"
	"testing"

	"gitlab.bluewillows.net/root/wansync/pkg/source"
)

func echoServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

// newTestSource builds a source whose IPv6 lookups go over the loopback
// IPv4 listener, since test hosts may lack IPv6.
func newTestSource(t *testing.T, cfg *Config) *Source {
	t.Helper()
	src, err := New(cfg,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithHTTPClient(source.FamilyIPv6, http.DefaultClient),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return src
}

func TestSource_WANStatus(t *testing.T) {
	v4 := echoServer(t, http.StatusOK, "203.0.113.50\n")
	v6 := echoServer(t, http.StatusOK, "2001:0db8::0050")

	src := newTestSource(t, &Config{IPv4URL: v4.URL, IPv6URL: v6.URL})
	sess, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer sess.Close(context.Background())

	obs, err := sess.WANStatus(context.Background())
	if err != nil {
		t.Fatalf("WANStatus() error = %v", err)
	}
	if obs.IPv4 != "203.0.113.50" {
		t.Errorf("IPv4 = %q, want %q", obs.IPv4, "203.0.113.50")
	}
	if obs.IPv6 != "2001:db8::50" {
		t.Errorf("IPv6 = %q, want %q", obs.IPv6, "2001:db8::50")
	}
}

func TestSource_WANStatus_DisabledFamily(t *testing.T) {
	v4 := echoServer(t, http.StatusOK, "203.0.113.50")

	src := newTestSource(t, &Config{IPv4URL: v4.URL})
	sess, _ := src.Open(context.Background())

	obs, err := sess.WANStatus(context.Background())
	if err != nil {
		t.Fatalf("WANStatus() error = %v", err)
	}
	if _, ok, err := obs.Lookup(source.FamilyIPv6); ok || err != nil {
		t.Errorf("Lookup(ipv6) = ok %v, err %v; want absent", ok, err)
	}
}

func TestSource_WANStatus_OneFamilyFails(t *testing.T) {
	v4 := echoServer(t, http.StatusServiceUnavailable, "busy")
	v6 := echoServer(t, http.StatusOK, "2001:db8::50")

	src := newTestSource(t, &Config{IPv4URL: v4.URL, IPv6URL: v6.URL})
	sess, _ := src.Open(context.Background())

	obs, err := sess.WANStatus(context.Background())
	if err != nil {
		t.Fatalf("WANStatus() error = %v", err)
	}
	if _, _, err := obs.Lookup(source.FamilyIPv4); !source.IsFetch(err) {
		t.Errorf("Lookup(ipv4) error = %v, want ErrFetch", err)
	}
	if obs.IPv6 != "2001:db8::50" {
		t.Errorf("IPv6 = %q, want %q", obs.IPv6, "2001:db8::50")
	}
}

// dialFailure is a transport whose every request fails to connect.
type dialFailure struct{ err error }

func (d dialFailure) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, &net.OpError{Op: "dial", Net: "tcp6", Err: d.err}
}

func TestSource_WANStatus_IPv6Unreachable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"no route", os.NewSyscallError("connect", syscall.ENETUNREACH)},
		{"no local address", os.NewSyscallError("connect", syscall.EADDRNOTAVAIL)},
		{"dial timeout", os.ErrDeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v4 := echoServer(t, http.StatusOK, "203.0.113.50")

			src, err := New(&Config{IPv4URL: v4.URL, IPv6URL: "http://[2001:db8::1]/"},
				WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
				WithHTTPClient(source.FamilyIPv6, &http.Client{Transport: dialFailure{err: tt.err}}),
			)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			sess, _ := src.Open(context.Background())

			obs, err := sess.WANStatus(context.Background())
			if err != nil {
				t.Fatalf("WANStatus() error = %v", err)
			}
			if obs.IPv4 != "203.0.113.50" {
				t.Errorf("IPv4 = %q, want %q", obs.IPv4, "203.0.113.50")
			}
			if addr, ok, err := obs.Lookup(source.FamilyIPv6); ok || err != nil {
				t.Errorf("Lookup(ipv6) = (%q, %v, %v), want absent", addr, ok, err)
			}
		})
	}
}

func TestSource_WANStatus_IPv6OnlyUnreachable(t *testing.T) {
	src, err := New(&Config{IPv6URL: "http://[2001:db8::1]/"},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithHTTPClient(source.FamilyIPv6, &http.Client{
			Transport: dialFailure{err: os.NewSyscallError("connect", syscall.ENETUNREACH)},
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sess, _ := src.Open(context.Background())

	obs, err := sess.WANStatus(context.Background())
	if err != nil {
		t.Fatalf("WANStatus() error = %v", err)
	}
	if !obs.Empty() {
		t.Errorf("observation = %+v, want empty", obs)
	}
}

func TestSource_WANStatus_IPv6RefusedStillFails(t *testing.T) {
	v4 := echoServer(t, http.StatusOK, "203.0.113.50")

	src, err := New(&Config{IPv4URL: v4.URL, IPv6URL: "http://[2001:db8::1]/"},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithHTTPClient(source.FamilyIPv6, &http.Client{
			Transport: dialFailure{err: os.NewSyscallError("connect", syscall.ECONNREFUSED)},
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sess, _ := src.Open(context.Background())

	obs, err := sess.WANStatus(context.Background())
	if err != nil {
		t.Fatalf("WANStatus() error = %v", err)
	}
	_, _, lookupErr := obs.Lookup(source.FamilyIPv6)
	if !source.IsFetch(lookupErr) || !errors.Is(lookupErr, syscall.ECONNREFUSED) {
		t.Errorf("Lookup(ipv6) error = %v, want ErrFetch wrapping ECONNREFUSED", lookupErr)
	}
}

func TestSource_WANStatus_AllFail(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: ""},
		{name: "not an address", status: http.StatusOK, body: "<html>captive portal</html>"},
		{name: "wrong family", status: http.StatusOK, body: "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v4 := echoServer(t, tt.status, tt.body)
			src := newTestSource(t, &Config{IPv4URL: v4.URL})
			sess, _ := src.Open(context.Background())

			_, err := sess.WANStatus(context.Background())
			if !source.IsFetch(err) {
				t.Errorf("WANStatus() error = %v, want ErrFetch", err)
			}
			if err := src.Ping(context.Background()); err == nil {
				t.Error("Ping() expected error")
			}
		})
	}
}

func TestSource_IPv4PinnedToTCP4(t *testing.T) {
	v4 := echoServer(t, http.StatusOK, "203.0.113.50")

	src, err := New(&Config{IPv4URL: v4.URL}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := src.Ping(context.Background()); err != nil {
		t.Errorf("Ping() over tcp4 error = %v", err)
	}
	if src.Name() != SourceName {
		t.Errorf("Name() = %q, want %q", src.Name(), SourceName)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "defaults", config: Config{IPv4URL: DefaultIPv4URL, IPv6URL: DefaultIPv6URL}},
		{name: "IPv6 only", config: Config{IPv6URL: DefaultIPv6URL}},
		{name: "nothing configured", config: Config{}, wantErr: true},
		{name: "bad scheme", config: Config{IPv4URL: "ftp://example.com"}, wantErr: true},
		{name: "no host", config: Config{IPv4URL: "https://"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
