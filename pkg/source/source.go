// Package source defines where the reconciler learns the public WAN addresses
// it publishes.
//
// The primary source is the network gateway's management API, which needs a
// login before the WAN status can be read. A pass therefore opens a Session,
// reads the WAN status once, and closes the session again:
//
//	sess, err := src.Open(ctx)
//	if err != nil {
//	    return err // wraps ErrAuth
//	}
//	defer sess.Close(ctx)
//
//	obs, err := sess.WANStatus(ctx) // wraps ErrFetch on failure
//
// Sessions are never kept across passes.
package source

import (
	"context"
	"fmt"
)

// Family is an IP address family.
type Family string

const (
	FamilyIPv4 Family = "ipv4"
	FamilyIPv6 Family = "ipv6"
)

// Source produces sessions that can report the current WAN addresses.
type Source interface {
	// Name returns the source identifier (e.g., "unifi", "web").
	Name() string

	// Open establishes a session. Credential problems wrap ErrAuth.
	Open(ctx context.Context) (Session, error)

	// Ping checks that the source is reachable without authenticating.
	Ping(ctx context.Context) error
}

// Session is a scoped, authenticated view of a source.
type Session interface {
	// WANStatus returns the addresses observed right now. An error (wrapping
	// ErrFetch) means neither family could be observed; failures limited to
	// one family are reported through Observation.Failed instead.
	WANStatus(ctx context.Context) (Observation, error)

	// Close releases the session. It is safe to call more than once.
	Close(ctx context.Context) error
}

// Observation holds the public addresses seen at one point in time.
// An empty address means the family is not configured upstream.
type Observation struct {
	IPv4 string
	IPv6 string

	// Failed records families whose lookup failed while the other family
	// was still observed.
	Failed map[Family]error
}

// Lookup returns the address for a family. ok is false when the family is
// not configured; err is non-nil when its lookup failed.
func (o Observation) Lookup(f Family) (addr string, ok bool, err error) {
	if ferr := o.Failed[f]; ferr != nil {
		return "", false, ferr
	}
	switch f {
	case FamilyIPv4:
		addr = o.IPv4
	case FamilyIPv6:
		addr = o.IPv6
	default:
		return "", false, fmt.Errorf("unknown address family %q", f)
	}
	return addr, addr != "", nil
}

// Set stores addr for a family and clears any earlier failure for it.
func (o *Observation) Set(f Family, addr string) {
	switch f {
	case FamilyIPv4:
		o.IPv4 = addr
	case FamilyIPv6:
		o.IPv6 = addr
	}
	delete(o.Failed, f)
}

// Fail records a lookup failure for one family.
func (o *Observation) Fail(f Family, err error) {
	if o.Failed == nil {
		o.Failed = make(map[Family]error)
	}
	o.Set(f, "")
	o.Failed[f] = err
}

// Empty reports whether no family was observed and none failed.
func (o Observation) Empty() bool {
	return o.IPv4 == "" && o.IPv6 == "" && len(o.Failed) == 0
}
