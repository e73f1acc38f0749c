package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileConfig represents the configuration file structure. YAML and TOML use
// the same key names.
type FileConfig struct {
	// Logging configuration
	Logging *FileLoggingConfig `yaml:"logging,omitempty" toml:"logging,omitempty"`

	// Reconciler settings
	Reconciler *FileReconcilerConfig `yaml:"reconciler,omitempty" toml:"reconciler,omitempty"`

	// Health and metrics server
	Server *FileServerConfig `yaml:"server,omitempty" toml:"server,omitempty"`

	// Address source: unifi, web, or opendns
	Source string `yaml:"source,omitempty" toml:"source,omitempty"`

	UniFi   *FileUniFiConfig   `yaml:"unifi,omitempty" toml:"unifi,omitempty"`
	Web     *FileWebConfig     `yaml:"web,omitempty" toml:"web,omitempty"`
	OpenDNS *FileOpenDNSConfig `yaml:"opendns,omitempty" toml:"opendns,omitempty"`
	Route53 *FileRoute53Config `yaml:"route53,omitempty" toml:"route53,omitempty"`

	// Explicit records; replaces the record_name × record_types product
	Records []FileRecordConfig `yaml:"records,omitempty" toml:"records,omitempty"`
}

// FileLoggingConfig holds logging settings.
type FileLoggingConfig struct {
	Level  string `yaml:"level,omitempty" toml:"level,omitempty"`   // debug, info, warn, error
	Format string `yaml:"format,omitempty" toml:"format,omitempty"` // json, text
}

// FileReconcilerConfig holds reconciliation settings.
type FileReconcilerConfig struct {
	Interval    string   `yaml:"interval,omitempty" toml:"interval,omitempty"`         // Go duration; 0 runs once
	DryRun      *bool    `yaml:"dry_run,omitempty" toml:"dry_run,omitempty"`           // Pointer to distinguish unset from false
	Parallel    *bool    `yaml:"parallel,omitempty" toml:"parallel,omitempty"`         // Reconcile records concurrently
	RecordTypes []string `yaml:"record_types,omitempty" toml:"record_types,omitempty"` // A, AAAA
	HTTPTimeout string   `yaml:"http_timeout,omitempty" toml:"http_timeout,omitempty"` // Per-request timeout
}

// FileServerConfig holds health/metrics server settings.
type FileServerConfig struct {
	Port int `yaml:"port,omitempty" toml:"port,omitempty"`
}

// FileUniFiConfig holds UniFi console settings.
type FileUniFiConfig struct {
	URL       string `yaml:"url,omitempty" toml:"url,omitempty"`
	Host      string `yaml:"host,omitempty" toml:"host,omitempty"`
	Port      int    `yaml:"port,omitempty" toml:"port,omitempty"`
	Username  string `yaml:"username,omitempty" toml:"username,omitempty"`
	Password  string `yaml:"password,omitempty" toml:"password,omitempty"`
	APIKey    string `yaml:"api_key,omitempty" toml:"api_key,omitempty"`
	Site      string `yaml:"site,omitempty" toml:"site,omitempty"`
	VerifySSL *bool  `yaml:"verify_ssl,omitempty" toml:"verify_ssl,omitempty"`
	Legacy    *bool  `yaml:"legacy,omitempty" toml:"legacy,omitempty"`
	WAN       string `yaml:"wan,omitempty" toml:"wan,omitempty"`
	Retries   *int   `yaml:"retries,omitempty" toml:"retries,omitempty"`
}

// FileWebConfig holds echo endpoint settings. A key set to "" disables the
// family, so pointers distinguish unset from empty.
type FileWebConfig struct {
	IPv4URL *string `yaml:"ipv4_url,omitempty" toml:"ipv4_url,omitempty"`
	IPv6URL *string `yaml:"ipv6_url,omitempty" toml:"ipv6_url,omitempty"`
}

// FileOpenDNSConfig holds resolver settings.
type FileOpenDNSConfig struct {
	IPv4Server *string `yaml:"ipv4_server,omitempty" toml:"ipv4_server,omitempty"`
	IPv6Server *string `yaml:"ipv6_server,omitempty" toml:"ipv6_server,omitempty"`
}

// FileRoute53Config holds Route 53 settings.
type FileRoute53Config struct {
	ZoneID          string `yaml:"zone_id,omitempty" toml:"zone_id,omitempty"`
	RecordName      string `yaml:"record_name,omitempty" toml:"record_name,omitempty"`
	TTL             int    `yaml:"ttl,omitempty" toml:"ttl,omitempty"`
	Region          string `yaml:"region,omitempty" toml:"region,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" toml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" toml:"secret_access_key,omitempty"`
	Comment         string `yaml:"comment,omitempty" toml:"comment,omitempty"`
	Wait            *bool  `yaml:"wait,omitempty" toml:"wait,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
}

// FileRecordConfig describes one managed record. An empty type expands to
// every configured record type.
type FileRecordConfig struct {
	Name   string `yaml:"name" toml:"name"`
	Type   string `yaml:"type,omitempty" toml:"type,omitempty"`
	TTL    int    `yaml:"ttl,omitempty" toml:"ttl,omitempty"`
	ZoneID string `yaml:"zone_id,omitempty" toml:"zone_id,omitempty"`
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnvVars replaces ${VAR} patterns with environment variable values.
// Supports ${VAR:-default} syntax for default values.
func InterpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 3 {
			defaultValue = groups[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

func interpolatePtr(p *string) {
	if p != nil {
		*p = InterpolateEnvVars(*p)
	}
}

// interpolateEnvVars interpolates environment variables in every string
// field of the config structure.
func (c *FileConfig) interpolateEnvVars() {
	c.Source = InterpolateEnvVars(c.Source)

	if c.Logging != nil {
		c.Logging.Level = InterpolateEnvVars(c.Logging.Level)
		c.Logging.Format = InterpolateEnvVars(c.Logging.Format)
	}

	if c.Reconciler != nil {
		c.Reconciler.Interval = InterpolateEnvVars(c.Reconciler.Interval)
		c.Reconciler.HTTPTimeout = InterpolateEnvVars(c.Reconciler.HTTPTimeout)
		for i := range c.Reconciler.RecordTypes {
			c.Reconciler.RecordTypes[i] = InterpolateEnvVars(c.Reconciler.RecordTypes[i])
		}
	}

	if u := c.UniFi; u != nil {
		u.URL = InterpolateEnvVars(u.URL)
		u.Host = InterpolateEnvVars(u.Host)
		u.Username = InterpolateEnvVars(u.Username)
		u.Password = InterpolateEnvVars(u.Password)
		u.APIKey = InterpolateEnvVars(u.APIKey)
		u.Site = InterpolateEnvVars(u.Site)
		u.WAN = InterpolateEnvVars(u.WAN)
	}

	if c.Web != nil {
		interpolatePtr(c.Web.IPv4URL)
		interpolatePtr(c.Web.IPv6URL)
	}

	if c.OpenDNS != nil {
		interpolatePtr(c.OpenDNS.IPv4Server)
		interpolatePtr(c.OpenDNS.IPv6Server)
	}

	if r := c.Route53; r != nil {
		r.ZoneID = InterpolateEnvVars(r.ZoneID)
		r.RecordName = InterpolateEnvVars(r.RecordName)
		r.Region = InterpolateEnvVars(r.Region)
		r.AccessKeyID = InterpolateEnvVars(r.AccessKeyID)
		r.SecretAccessKey = InterpolateEnvVars(r.SecretAccessKey)
		r.Comment = InterpolateEnvVars(r.Comment)
		r.Endpoint = InterpolateEnvVars(r.Endpoint)
	}

	for i := range c.Records {
		r := &c.Records[i]
		r.Name = InterpolateEnvVars(r.Name)
		r.Type = InterpolateEnvVars(r.Type)
		r.ZoneID = InterpolateEnvVars(r.ZoneID)
	}
}

// LoadFile reads and parses a configuration file. Files ending in .toml are
// parsed as TOML, everything else as YAML. Unknown keys are rejected.
// Environment variables in ${VAR} format are interpolated.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing TOML config: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			sort.Strings(keys)
			return nil, fmt.Errorf("parsing TOML config: unknown keys: %s", strings.Join(keys, ", "))
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	}

	cfg.interpolateEnvVars()

	return &cfg, nil
}
