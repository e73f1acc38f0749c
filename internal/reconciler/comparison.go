package reconciler

import (
	"gitlab.bluewillows.net/root/wansync/pkg/provider"
	"gitlab.bluewillows.net/root/wansync/pkg/source"
)

// Target is one record the reconciler keeps pointed at the WAN address.
type Target struct {
	ZoneID string
	Name   string // FQDN with trailing dot
	Type   provider.RecordType
	TTL    int
}

// Family returns the address family that feeds this target.
func (t Target) Family() source.Family {
	return source.Family(t.Type.Family())
}

// Record builds the record set that publishes value for this target.
func (t Target) Record(value string) provider.Record {
	return provider.Record{
		ZoneID: t.ZoneID,
		Name:   t.Name,
		Type:   t.Type,
		Value:  value,
		TTL:    t.TTL,
	}
}

// needsUpdate reports whether the published value must be replaced by the
// observed one. Sources and providers both hand out canonical literals, so
// the comparison is exact. A missing record (empty published) always needs
// an update.
func needsUpdate(published, observed string) bool {
	return published != observed
}

// displayValue renders an absent value the way it is logged.
func displayValue(v string) string {
	if v == "" {
		return "none"
	}
	return v
}
