package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/wansync/pkg/provider"
)

// Global configuration defaults.
const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultDryRun      = false
	DefaultInterval    = time.Duration(0)
	DefaultHealthPort  = 8080
	DefaultHTTPTimeout = 10 * time.Second
	DefaultParallel    = false
	DefaultSource      = "unifi"
)

// Known address sources.
const (
	SourceUniFi   = "unifi"
	SourceWeb     = "web"
	SourceOpenDNS = "opendns"
)

// DefaultRecordTypes are managed when WANSYNC_RECORD_TYPES is not set.
var DefaultRecordTypes = []provider.RecordType{provider.RecordTypeA, provider.RecordTypeAAAA}

// GlobalConfig holds application-wide settings.
// These are parsed from WANSYNC_* environment variables.
type GlobalConfig struct {
	// Logging configuration
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text

	// Behavior
	DryRun      bool                  // If true, log would-be updates without applying them
	RecordTypes []provider.RecordType // Address families to publish
	Interval    time.Duration         // Zero runs one pass and exits
	HealthPort  int                   // Port for health/metrics endpoints in daemon mode
	HTTPTimeout time.Duration         // Bound on every outbound HTTP request
	Parallel    bool                  // Reconcile records concurrently

	// Source
	Source string // unifi, web, opendns
}

// defaultGlobalConfig returns the built-in defaults.
func defaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
		DryRun:      DefaultDryRun,
		RecordTypes: append([]provider.RecordType(nil), DefaultRecordTypes...),
		Interval:    DefaultInterval,
		HealthPort:  DefaultHealthPort,
		HTTPTimeout: DefaultHTTPTimeout,
		Parallel:    DefaultParallel,
		Source:      DefaultSource,
	}
}

// applyGlobal overlays file settings onto cfg. Invalid file values are
// reported with the file key name.
func (c *FileConfig) applyGlobal(cfg *GlobalConfig) []string {
	var errs []string

	if c.Logging != nil {
		if c.Logging.Level != "" {
			cfg.LogLevel = strings.ToLower(c.Logging.Level)
		}
		if c.Logging.Format != "" {
			cfg.LogFormat = strings.ToLower(c.Logging.Format)
		}
	}

	if r := c.Reconciler; r != nil {
		if r.DryRun != nil {
			cfg.DryRun = *r.DryRun
		}
		if r.Parallel != nil {
			cfg.Parallel = *r.Parallel
		}
		if r.Interval != "" {
			interval, err := parseInterval(r.Interval)
			if err != nil {
				errs = append(errs, "reconciler.interval: "+err.Error())
			} else {
				cfg.Interval = interval
			}
		}
		if r.HTTPTimeout != "" {
			timeout, err := parseTimeout(r.HTTPTimeout)
			if err != nil {
				errs = append(errs, "reconciler.http_timeout: "+err.Error())
			} else {
				cfg.HTTPTimeout = timeout
			}
		}
		if len(r.RecordTypes) > 0 {
			types, err := parseRecordTypes(r.RecordTypes)
			if err != nil {
				errs = append(errs, "reconciler.record_types: "+err.Error())
			} else {
				cfg.RecordTypes = types
			}
		}
	}

	if c.Server != nil && c.Server.Port != 0 {
		cfg.HealthPort = c.Server.Port
	}

	if c.Source != "" {
		cfg.Source = strings.ToLower(c.Source)
	}

	return errs
}

// mergeGlobalConfig merges environment variable overrides into a GlobalConfig.
// Environment variables always take precedence over file config.
func mergeGlobalConfig(base *GlobalConfig) (*GlobalConfig, []string) {
	if base == nil {
		base = defaultGlobalConfig()
	}

	var errs []string

	cfg := *base
	cfg.RecordTypes = append([]provider.RecordType(nil), base.RecordTypes...)

	if v := getEnv("WANSYNC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if v := getEnv("WANSYNC_LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	if v := getEnv("WANSYNC_DRY_RUN"); v != "" {
		cfg.DryRun = parseBool(v, cfg.DryRun)
	}

	if v := getEnv("WANSYNC_PARALLEL"); v != "" {
		cfg.Parallel = parseBool(v, cfg.Parallel)
	}

	if v := getEnv("WANSYNC_RECORD_TYPES"); v != "" {
		types, err := parseRecordTypes(strings.Split(v, ","))
		if err != nil {
			errs = append(errs, "WANSYNC_RECORD_TYPES: "+err.Error())
		} else {
			cfg.RecordTypes = types
		}
	}

	// Parse INTERVAL (supports Go duration format: 60s, 5m, etc.)
	if v := getEnv("WANSYNC_INTERVAL"); v != "" {
		interval, err := parseInterval(v)
		if err != nil {
			errs = append(errs, "WANSYNC_INTERVAL: "+err.Error())
		} else {
			cfg.Interval = interval
		}
	}

	if v := getEnv("WANSYNC_HTTP_TIMEOUT"); v != "" {
		timeout, err := parseTimeout(v)
		if err != nil {
			errs = append(errs, "WANSYNC_HTTP_TIMEOUT: "+err.Error())
		} else {
			cfg.HTTPTimeout = timeout
		}
	}

	if v := getEnv("WANSYNC_HEALTH_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("WANSYNC_HEALTH_PORT: invalid integer %q", v))
		} else {
			cfg.HealthPort = port
		}
	}

	if v := getEnv("WANSYNC_SOURCE"); v != "" {
		cfg.Source = strings.ToLower(v)
	}

	return &cfg, errs
}

// validateGlobalConfig checks the merged global settings.
func validateGlobalConfig(cfg *GlobalConfig) []string {
	var errs []string

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
		// Valid
	default:
		errs = append(errs, fmt.Sprintf("WANSYNC_LOG_LEVEL: invalid value %q (must be debug, info, warn, or error)", cfg.LogLevel))
	}

	switch cfg.LogFormat {
	case "json", "text":
		// Valid
	default:
		errs = append(errs, fmt.Sprintf("WANSYNC_LOG_FORMAT: invalid value %q (must be json or text)", cfg.LogFormat))
	}

	if cfg.HealthPort < 1 || cfg.HealthPort > 65535 {
		errs = append(errs, fmt.Sprintf("WANSYNC_HEALTH_PORT: must be between 1 and 65535, got %d", cfg.HealthPort))
	}

	switch cfg.Source {
	case SourceUniFi, SourceWeb, SourceOpenDNS:
		// Valid
	default:
		errs = append(errs, fmt.Sprintf("WANSYNC_SOURCE: invalid value %q (must be unifi, web, or opendns)", cfg.Source))
	}

	return errs
}

// parseInterval parses a pass interval. Zero means one-shot; anything else
// must be at least a second.
func parseInterval(s string) (time.Duration, error) {
	interval, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q (use format like 60s, 5m)", s)
	}
	if interval < 0 || (interval > 0 && interval < time.Second) {
		return 0, fmt.Errorf("must be 0 or at least 1s, got %s", interval)
	}
	return interval, nil
}

// parseTimeout parses a positive request timeout.
func parseTimeout(s string) (time.Duration, error) {
	timeout, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q (use format like 10s)", s)
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", timeout)
	}
	return timeout, nil
}

// parseRecordTypes parses a list like ["A", "aaaa"], dropping duplicates.
func parseRecordTypes(values []string) ([]provider.RecordType, error) {
	var types []provider.RecordType
	seen := make(map[provider.RecordType]bool)

	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		rt, err := provider.ParseRecordType(v)
		if err != nil {
			return nil, err
		}
		if seen[rt] {
			continue
		}
		seen[rt] = true
		types = append(types, rt)
	}

	if len(types) == 0 {
		return nil, fmt.Errorf("at least one record type is required")
	}
	return types, nil
}
