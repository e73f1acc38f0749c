package source

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"
)

func TestObservation_Lookup(t *testing.T) {
	obs := Observation{IPv4: "203.0.113.5"}

	addr, ok, err := obs.Lookup(FamilyIPv4)
	if err != nil || !ok || addr != "203.0.113.5" {
		t.Errorf("Lookup(ipv4) = (%q, %v, %v), want (203.0.113.5, true, nil)", addr, ok, err)
	}

	addr, ok, err = obs.Lookup(FamilyIPv6)
	if err != nil || ok || addr != "" {
		t.Errorf("Lookup(ipv6) = (%q, %v, %v), want (\"\", false, nil)", addr, ok, err)
	}

	if _, _, err := obs.Lookup(Family("ipx")); err == nil {
		t.Error("Lookup(unknown family) should fail")
	}
}

func TestObservation_FailAndSet(t *testing.T) {
	var obs Observation
	boom := errors.New("malformed")

	obs.Fail(FamilyIPv4, boom)
	obs.Set(FamilyIPv6, "2001:db8::1")

	if _, _, err := obs.Lookup(FamilyIPv4); !errors.Is(err, boom) {
		t.Errorf("Lookup(ipv4) error = %v, want %v", err, boom)
	}
	if addr, ok, err := obs.Lookup(FamilyIPv6); err != nil || !ok || addr != "2001:db8::1" {
		t.Errorf("Lookup(ipv6) = (%q, %v, %v)", addr, ok, err)
	}

	obs.Set(FamilyIPv4, "198.51.100.7")
	if addr, ok, err := obs.Lookup(FamilyIPv4); err != nil || !ok || addr != "198.51.100.7" {
		t.Errorf("Set should clear the failure, got (%q, %v, %v)", addr, ok, err)
	}
}

func TestObservation_Empty(t *testing.T) {
	if !(Observation{}).Empty() {
		t.Error("zero Observation should be empty")
	}
	var failed Observation
	failed.Fail(FamilyIPv6, errors.New("x"))
	if failed.Empty() {
		t.Error("Observation with a failure should not be empty")
	}
}

func TestErrorClassification(t *testing.T) {
	cause := errors.New("401 Unauthorized")

	authErr := AuthError("unifi", cause)
	if !IsAuth(authErr) || IsFetch(authErr) {
		t.Errorf("AuthError classification wrong: %v", authErr)
	}
	if !errors.Is(authErr, cause) {
		t.Error("AuthError should keep the cause")
	}

	fetchErr := FetchError("unifi", cause)
	if !IsFetch(fetchErr) || IsAuth(fetchErr) {
		t.Errorf("FetchError classification wrong: %v", fetchErr)
	}
	if got, want := fetchErr.Error(), "unifi: gateway fetch failed: 401 Unauthorized"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }
func (timeoutErr) Temporary() bool { return true }

func dialErr(network string, err error) error {
	return &net.OpError{Op: "dial", Net: network, Err: err}
}

func TestIsUnreachable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network unreachable", dialErr("tcp6", os.NewSyscallError("connect", syscall.ENETUNREACH)), true},
		{"host unreachable", dialErr("udp6", os.NewSyscallError("connect", syscall.EHOSTUNREACH)), true},
		{"no local address", dialErr("tcp6", os.NewSyscallError("connect", syscall.EADDRNOTAVAIL)), true},
		{"dial timeout", dialErr("tcp6", timeoutErr{}), true},
		{"wrapped", fmt.Errorf("querying: %w", dialErr("tcp6", os.NewSyscallError("connect", syscall.ENETUNREACH))), true},
		{"connection refused", dialErr("tcp6", os.NewSyscallError("connect", syscall.ECONNREFUSED)), false},
		{"read timeout", &net.OpError{Op: "read", Net: "udp6", Err: timeoutErr{}}, false},
		{"plain error", errors.New("status 500"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUnreachable(tt.err); got != tt.want {
				t.Errorf("IsUnreachable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
