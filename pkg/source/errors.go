package source

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Common errors for source operations.
var (
	// ErrAuth indicates the credentials were rejected or no session could be
	// established.
	ErrAuth = errors.New("gateway authentication failed")

	// ErrFetch indicates the WAN status could not be read (network, timeout,
	// malformed response).
	ErrFetch = errors.New("gateway fetch failed")
)

// DuplicateSourceError indicates a factory with the same name already exists.
type DuplicateSourceError struct {
	Name string
}

func (e *DuplicateSourceError) Error() string {
	return fmt.Sprintf("source %q already registered", e.Name)
}

// ErrDuplicateSource creates an error for duplicate source registration.
func ErrDuplicateSource(name string) error {
	return &DuplicateSourceError{Name: name}
}

// SourceNotFoundError indicates the requested source does not exist.
type SourceNotFoundError struct {
	Name string
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("source %q not found", e.Name)
}

// ErrSourceNotFound creates an error for a missing source.
func ErrSourceNotFound(name string) error {
	return &SourceNotFoundError{Name: name}
}

// AuthError wraps err so that it matches ErrAuth.
func AuthError(source string, err error) error {
	return fmt.Errorf("%s: %w: %w", source, ErrAuth, err)
}

// FetchError wraps err so that it matches ErrFetch.
func FetchError(source string, err error) error {
	return fmt.Errorf("%s: %w: %w", source, ErrFetch, err)
}

// IsAuth returns true if the error is a gateway authentication failure.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsFetch returns true if the error is a gateway fetch failure.
func IsFetch(err error) bool {
	return errors.Is(err, ErrFetch)
}

// IsUnreachable reports whether err is a failed dial showing the host has no
// usable path to the address: no route, no local address of that family, or
// a connect that timed out. Errors after the connection was made never
// match.
func IsUnreachable(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) || opErr.Op != "dial" {
		return false
	}
	if opErr.Timeout() {
		return true
	}
	return errors.Is(opErr, syscall.ENETUNREACH) ||
		errors.Is(opErr, syscall.EHOSTUNREACH) ||
		errors.Is(opErr, syscall.EADDRNOTAVAIL)
}
