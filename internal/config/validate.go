package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration error: %s", e.Errors[0])
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// validateConfig performs cross-field validation on the complete configuration.
// Only the selected source is checked, so unused sections may stay empty.
func validateConfig(cfg *Config) []string {
	var errs []string

	errs = append(errs, validateGlobalConfig(cfg.Global)...)

	switch cfg.Global.Source {
	case SourceUniFi:
		errs = append(errs, validateUniFiConfig(&cfg.UniFi)...)
	case SourceWeb:
		if err := cfg.Web.Validate(); err != nil {
			errs = append(errs, "WANSYNC_WEB: "+err.Error())
		}
	case SourceOpenDNS:
		if err := cfg.OpenDNS.Validate(); err != nil {
			errs = append(errs, "WANSYNC_OPENDNS: "+err.Error())
		}
	}

	errs = append(errs, validateRoute53Config(&cfg.Route53)...)
	errs = append(errs, validateRecords(cfg.Records)...)

	return errs
}
