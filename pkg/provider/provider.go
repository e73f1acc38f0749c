// Package provider defines the interface the DNS backend must implement.
package provider

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
)

// RecordType represents the type of DNS record.
type RecordType string

const (
	RecordTypeA    RecordType = "A"
	RecordTypeAAAA RecordType = "AAAA"
)

// ParseRecordType converts a string to a RecordType (case-insensitive).
func ParseRecordType(s string) (RecordType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return RecordTypeA, nil
	case "AAAA":
		return RecordTypeAAAA, nil
	default:
		return "", fmt.Errorf("unsupported record type %q (must be A or AAAA)", s)
	}
}

// Family returns the address family name used in logs and metrics.
func (t RecordType) Family() string {
	if t == RecordTypeAAAA {
		return "ipv6"
	}
	return "ipv4"
}

// Record is a single-value address record set.
type Record struct {
	ZoneID string
	Name   string
	Type   RecordType
	Value  string // IP literal in canonical form
	TTL    int
}

// Provider defines the operations the reconciler needs from a DNS backend.
type Provider interface {
	// Name returns the provider name used in logs (e.g., "route53").
	Name() string

	// Ping checks connectivity and credentials.
	Ping(ctx context.Context) error

	// GetRecord returns the published record for name/type in the zone.
	// Returns ErrNotFound if no such record set exists.
	GetRecord(ctx context.Context, zoneID, name string, recordType RecordType) (*Record, error)

	// UpsertRecord creates or replaces the record set keyed by name and type.
	UpsertRecord(ctx context.Context, record Record) error
}

// CanonicalAddress returns the canonical text form of an IP literal of the
// given record type. IPv4-mapped IPv6 addresses are rejected for AAAA.
func CanonicalAddress(recordType RecordType, value string) (string, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("invalid IP address %q: %w", value, err)
	}
	switch recordType {
	case RecordTypeA:
		if !addr.Is4() {
			return "", fmt.Errorf("%q is not an IPv4 address", value)
		}
	case RecordTypeAAAA:
		if !addr.Is6() || addr.Is4In6() {
			return "", fmt.Errorf("%q is not an IPv6 address", value)
		}
	default:
		return "", fmt.Errorf("unsupported record type %q", recordType)
	}
	return addr.WithZone("").String(), nil
}

// FQDN returns name lowercased with exactly one trailing dot.
func FQDN(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".") + "."
}
