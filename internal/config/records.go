package config

import (
	"fmt"
	"strings"

	"gitlab.bluewillows.net/root/wansync/pkg/provider"
	"gitlab.bluewillows.net/root/wansync/providers/route53"
)

// RecordConfig is one managed DNS record.
type RecordConfig struct {
	ZoneID string
	Name   string // FQDN with trailing dot
	Type   provider.RecordType
	TTL    int
}

// buildRecords derives the managed records. Explicit file records win;
// otherwise ROUTE53_RECORD_NAME is paired with every configured type.
func buildRecords(fileRecords []FileRecordConfig, r53 *Route53Config, types []provider.RecordType) ([]RecordConfig, []string) {
	var errs []string
	var records []RecordConfig

	if len(fileRecords) == 0 {
		if strings.TrimSpace(r53.RecordName) == "" {
			return nil, []string{"ROUTE53_RECORD_NAME: required (or list records in the config file)"}
		}
		for _, rt := range types {
			records = append(records, RecordConfig{
				ZoneID: r53.ZoneID,
				Name:   provider.FQDN(r53.RecordName),
				Type:   rt,
				TTL:    r53.TTL,
			})
		}
		return records, nil
	}

	for i, fr := range fileRecords {
		key := fmt.Sprintf("records[%d]", i)

		if strings.TrimSpace(fr.Name) == "" {
			errs = append(errs, key+".name: required")
			continue
		}

		recordTypes := types
		if fr.Type != "" {
			rt, err := provider.ParseRecordType(fr.Type)
			if err != nil {
				errs = append(errs, key+".type: "+err.Error())
				continue
			}
			recordTypes = []provider.RecordType{rt}
		}

		ttl := r53.TTL
		if fr.TTL != 0 {
			ttl = fr.TTL
		}
		if ttl < 1 {
			errs = append(errs, fmt.Sprintf("%s.ttl: must be at least 1, got %d", key, ttl))
			continue
		}

		zoneID := r53.ZoneID
		if fr.ZoneID != "" {
			zoneID = route53.NormalizeZoneID(fr.ZoneID)
		}

		for _, rt := range recordTypes {
			records = append(records, RecordConfig{
				ZoneID: zoneID,
				Name:   provider.FQDN(fr.Name),
				Type:   rt,
				TTL:    ttl,
			})
		}
	}

	return records, errs
}

// validateRecords rejects records the provider cannot address and duplicate
// name/type pairs, which would be upserted twice per pass.
func validateRecords(records []RecordConfig) []string {
	var errs []string
	seen := make(map[string]bool)

	for _, r := range records {
		if r.ZoneID == "" {
			errs = append(errs, fmt.Sprintf("record %s %s: zone ID required", r.Name, r.Type))
		}
		if err := validateRecordName(r.Name); err != nil {
			errs = append(errs, fmt.Sprintf("record %s: %v", r.Name, err))
		}

		key := r.ZoneID + "|" + r.Name + "|" + string(r.Type)
		if seen[key] {
			errs = append(errs, fmt.Sprintf("record %s %s: listed more than once", r.Name, r.Type))
		}
		seen[key] = true
	}

	return errs
}

// validateRecordName checks a fully qualified name against DNS length rules.
func validateRecordName(fqdn string) error {
	name := strings.TrimSuffix(fqdn, ".")
	if name == "" {
		return fmt.Errorf("name is empty")
	}
	if len(name) > 253 {
		return fmt.Errorf("name longer than 253 characters")
	}
	for _, label := range strings.Split(name, ".") {
		if label == "" {
			return fmt.Errorf("name has an empty label")
		}
		if len(label) > 63 {
			return fmt.Errorf("label %q longer than 63 characters", label)
		}
	}
	return nil
}
