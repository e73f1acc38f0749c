package route53

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/wansync/pkg/provider"
)

// Defaults for Route 53.
const (
	DefaultTTL         = 300
	DefaultRegion      = "us-east-1"
	DefaultComment     = "Automated DDNS update"
	DefaultMaxRetries  = 3
	DefaultWaitTimeout = 2 * time.Minute
)

// Config holds Route 53-specific configuration.
type Config struct {
	ZoneID          string        // Hosted zone ID, with or without the /hostedzone/ prefix
	Region          string        // AWS region for the API client (defaults to DefaultRegion)
	AccessKeyID     string        // Static credentials; empty uses the default AWS chain
	SecretAccessKey string        // Required together with AccessKeyID
	SessionToken    string        // Optional STS session token
	Comment         string        // Change batch comment (defaults to DefaultComment)
	Wait            bool          // Wait for the change to reach INSYNC
	WaitTimeout     time.Duration // Bound on Wait (defaults to DefaultWaitTimeout)
	Endpoint        string        // API endpoint override
	MaxRetries      int           // SDK retry budget (defaults to DefaultMaxRetries)
}

// NormalizeZoneID strips the "/hostedzone/" prefix the API uses in responses.
func NormalizeZoneID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "/")
	return strings.TrimPrefix(id, "hostedzone/")
}

func (c *Config) applyDefaults() {
	c.ZoneID = NormalizeZoneID(c.ZoneID)
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.Comment == "" {
		c.Comment = DefaultComment
	}
	if c.WaitTimeout == 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if NormalizeZoneID(c.ZoneID) == "" {
		errs = append(errs, "ZONE_ID is required")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		errs = append(errs, "ACCESS_KEY_ID and SECRET_ACCESS_KEY must be set together")
	}
	if c.Endpoint != "" {
		if u, err := url.Parse(c.Endpoint); err != nil || u.Host == "" {
			errs = append(errs, fmt.Sprintf("ENDPOINT %q must be an absolute URL", c.Endpoint))
		}
	}
	if c.MaxRetries < 0 {
		errs = append(errs, "MAX_RETRIES must be non-negative")
	}
	if c.WaitTimeout < 0 {
		errs = append(errs, "WAIT_TIMEOUT must be non-negative")
	}

	return provider.NewConfigError(ProviderName, errs)
}
