package provider

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for provider operations. Providers wrap them so callers can
// classify failures with errors.Is.
var (
	// ErrNotFound indicates no record set exists for the name and type.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized indicates the credentials were rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrProviderUnavailable indicates the API could not be reached or is
	// throttling. A later pass may succeed.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// Operation names used in ProviderError.
const (
	OpPing   = "ping"
	OpGet    = "get"
	OpUpsert = "upsert"
)

// ConfigError lists every problem found in a provider's settings.
type ConfigError struct {
	Provider string
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s config validation failed: %s", e.Provider, strings.Join(e.Problems, "; "))
}

// NewConfigError returns a *ConfigError, or nil when problems is empty.
func NewConfigError(provider string, problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ConfigError{Provider: provider, Problems: problems}
}

// ProviderError adds the provider, operation and, for record operations, the
// affected record set to an error.
type ProviderError struct {
	Provider  string
	Operation string
	Type      RecordType // empty for zone-level operations
	Name      string
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Operation, e.Err)
	}
	return fmt.Sprintf("%s %s %s %s: %v", e.Provider, e.Operation, e.Type, e.Name, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps a zone-level failure. A nil err stays nil.
func WrapError(provider, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Operation: operation, Err: err}
}

// WrapRecordError wraps a failure on one record set. A nil err stays nil.
func WrapRecordError(provider, operation string, recordType RecordType, name string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{
		Provider:  provider,
		Operation: operation,
		Type:      recordType,
		Name:      name,
		Err:       err,
	}
}

// IsNotFound reports whether err means the record set does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized reports whether err means the credentials were rejected.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsProviderUnavailable reports whether err is transient.
func IsProviderUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}
