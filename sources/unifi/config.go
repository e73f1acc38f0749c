package unifi

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Defaults for the UniFi gateway source.
const (
	DefaultPort    = 443
	DefaultSite    = "default"
	DefaultWAN     = "wan1"
	DefaultRetries = 2
)

// Config holds UniFi-specific configuration.
type Config struct {
	URL       string // Console base URL (e.g., https://192.168.1.1)
	Username  string // Local admin user
	Password  string // Local admin password
	APIKey    string // Integration API key; when set no login is performed
	Site      string // Network application site ID (defaults to DefaultSite)
	VerifySSL bool   // Verify the console certificate (consoles ship self-signed certs)
	Legacy    bool   // Classic controller paths without the /proxy/network prefix
	WAN       string // WAN interface key in the device document (defaults to DefaultWAN)
	Retries   int    // Extra attempts for login and status fetch
}

// BaseURL builds a console URL from a host and port, the way the gateway is
// usually addressed (UNIFI_IP / UNIFI_PORT).
func BaseURL(host string, port int) string {
	if port == 0 {
		port = DefaultPort
	}
	return "https://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// applyDefaults fills in optional settings.
func (c *Config) applyDefaults() {
	c.URL = strings.TrimSuffix(strings.TrimSpace(c.URL), "/")
	if c.Site == "" {
		c.Site = DefaultSite
	}
	if c.WAN == "" {
		c.WAN = DefaultWAN
	}
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.URL == "" {
		errs = append(errs, "URL is required")
	} else if u, err := url.Parse(c.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Sprintf("URL %q must be an http(s) URL with a host", c.URL))
	}
	if c.APIKey == "" {
		if c.Username == "" {
			errs = append(errs, "USER is required when no API key is set")
		}
		if c.Password == "" {
			errs = append(errs, "PASS is required when no API key is set")
		}
	}
	if c.Retries < 0 {
		errs = append(errs, "RETRIES must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("unifi config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) loginPath() string {
	if c.Legacy {
		return "/api/login"
	}
	return "/api/auth/login"
}

func (c *Config) logoutPath() string {
	if c.Legacy {
		return "/api/logout"
	}
	return "/api/auth/logout"
}

func (c *Config) devicePath() string {
	site := url.PathEscape(c.Site)
	if c.Legacy {
		return "/api/s/" + site + "/stat/device"
	}
	return "/proxy/network/api/s/" + site + "/stat/device"
}
