package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gitlab.bluewillows.net/root/wansync/providers/route53"
	"gitlab.bluewillows.net/root/wansync/sources/opendns"
	"gitlab.bluewillows.net/root/wansync/sources/unifi"
	"gitlab.bluewillows.net/root/wansync/sources/web"
)

// UniFiConfig holds the console settings as configured. URL is derived from
// Host and Port when not given directly.
type UniFiConfig struct {
	unifi.Config
	Host string
	Port int
}

// Route53Config holds the provider settings plus the env-derived record.
type Route53Config struct {
	route53.Config
	RecordName string
	TTL        int
}

func defaultUniFiConfig() *UniFiConfig {
	return &UniFiConfig{
		Config: unifi.Config{
			Site:    unifi.DefaultSite,
			WAN:     unifi.DefaultWAN,
			Retries: unifi.DefaultRetries,
		},
		Port: unifi.DefaultPort,
	}
}

func defaultWebConfig() *web.Config {
	return &web.Config{
		IPv4URL: web.DefaultIPv4URL,
		IPv6URL: web.DefaultIPv6URL,
	}
}

func defaultOpenDNSConfig() *opendns.Config {
	return &opendns.Config{
		IPv4Server: opendns.DefaultIPv4Server,
		IPv6Server: opendns.DefaultIPv6Server,
	}
}

func defaultRoute53Config() *Route53Config {
	return &Route53Config{
		Config: route53.Config{
			Region:  route53.DefaultRegion,
			Comment: route53.DefaultComment,
		},
		TTL: route53.DefaultTTL,
	}
}

// applyBackends overlays the file's source and provider sections.
func (c *FileConfig) applyBackends(u *UniFiConfig, w *web.Config, o *opendns.Config, r *Route53Config) {
	if f := c.UniFi; f != nil {
		setString(&u.URL, f.URL)
		setString(&u.Host, f.Host)
		if f.Port != 0 {
			u.Port = f.Port
		}
		setString(&u.Username, f.Username)
		setString(&u.Password, f.Password)
		setString(&u.APIKey, f.APIKey)
		setString(&u.Site, f.Site)
		setString(&u.WAN, f.WAN)
		if f.VerifySSL != nil {
			u.VerifySSL = *f.VerifySSL
		}
		if f.Legacy != nil {
			u.Legacy = *f.Legacy
		}
		if f.Retries != nil {
			u.Retries = *f.Retries
		}
	}

	if f := c.Web; f != nil {
		if f.IPv4URL != nil {
			w.IPv4URL = *f.IPv4URL
		}
		if f.IPv6URL != nil {
			w.IPv6URL = *f.IPv6URL
		}
	}

	if f := c.OpenDNS; f != nil {
		if f.IPv4Server != nil {
			o.IPv4Server = *f.IPv4Server
		}
		if f.IPv6Server != nil {
			o.IPv6Server = *f.IPv6Server
		}
	}

	if f := c.Route53; f != nil {
		setString(&r.ZoneID, f.ZoneID)
		setString(&r.RecordName, f.RecordName)
		if f.TTL != 0 {
			r.TTL = f.TTL
		}
		setString(&r.Region, f.Region)
		setString(&r.AccessKeyID, f.AccessKeyID)
		setString(&r.SecretAccessKey, f.SecretAccessKey)
		setString(&r.Comment, f.Comment)
		setString(&r.Endpoint, f.Endpoint)
		if f.Wait != nil {
			r.Wait = *f.Wait
		}
	}
}

// mergeUniFiConfig applies UNIFI_* environment overrides.
func mergeUniFiConfig(cfg *UniFiConfig) []string {
	var errs []string

	setString(&cfg.URL, getEnv("UNIFI_URL"))
	setString(&cfg.Host, getEnv("UNIFI_IP"))
	if v := getEnv("UNIFI_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("UNIFI_PORT: invalid integer %q", v))
		} else {
			cfg.Port = port
		}
	}
	setString(&cfg.Username, getEnv("UNIFI_USER"))
	setString(&cfg.Password, getEnvWithFileFallback("UNIFI_PASS"))
	setString(&cfg.APIKey, getEnvWithFileFallback("UNIFI_API_KEY"))
	setString(&cfg.Site, getEnv("UNIFI_SITE_ID"))
	setString(&cfg.WAN, getEnv("UNIFI_WAN"))
	if v := getEnv("UNIFI_VERIFY_SSL"); v != "" {
		cfg.VerifySSL = parseBool(v, cfg.VerifySSL)
	}
	if v := getEnv("UNIFI_LEGACY"); v != "" {
		cfg.Legacy = parseBool(v, cfg.Legacy)
	}
	if v := getEnv("UNIFI_RETRIES"); v != "" {
		retries, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("UNIFI_RETRIES: invalid integer %q", v))
		} else {
			cfg.Retries = retries
		}
	}

	return errs
}

// mergeWebConfig applies WANSYNC_WEB_* overrides. An explicitly empty
// variable disables that family.
func mergeWebConfig(cfg *web.Config) {
	if v, ok := lookupEnv("WANSYNC_WEB_IPV4_URL"); ok {
		cfg.IPv4URL = strings.TrimSpace(v)
	}
	if v, ok := lookupEnv("WANSYNC_WEB_IPV6_URL"); ok {
		cfg.IPv6URL = strings.TrimSpace(v)
	}
}

// mergeOpenDNSConfig applies WANSYNC_OPENDNS_* overrides. An explicitly
// empty variable disables that family.
func mergeOpenDNSConfig(cfg *opendns.Config) {
	if v, ok := lookupEnv("WANSYNC_OPENDNS_IPV4_SERVER"); ok {
		cfg.IPv4Server = strings.TrimSpace(v)
	}
	if v, ok := lookupEnv("WANSYNC_OPENDNS_IPV6_SERVER"); ok {
		cfg.IPv6Server = strings.TrimSpace(v)
	}
}

// mergeRoute53Config applies ROUTE53_* and AWS_REGION overrides.
func mergeRoute53Config(cfg *Route53Config) []string {
	var errs []string

	setString(&cfg.ZoneID, getEnv("ROUTE53_ZONE_ID"))
	setString(&cfg.RecordName, getEnv("ROUTE53_RECORD_NAME"))
	if v := getEnv("ROUTE53_TTL"); v != "" {
		ttl, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("ROUTE53_TTL: invalid integer %q", v))
		} else {
			cfg.TTL = ttl
		}
	}
	setString(&cfg.Region, getEnv("AWS_REGION"))
	setString(&cfg.AccessKeyID, getEnvWithFileFallback("ROUTE53_ACCESS_KEY_ID"))
	setString(&cfg.SecretAccessKey, getEnvWithFileFallback("ROUTE53_SECRET_ACCESS_KEY"))
	setString(&cfg.Comment, getEnv("ROUTE53_COMMENT"))
	setString(&cfg.Endpoint, getEnv("ROUTE53_ENDPOINT"))
	if v := getEnv("ROUTE53_WAIT"); v != "" {
		cfg.Wait = parseBool(v, cfg.Wait)
	}

	cfg.ZoneID = route53.NormalizeZoneID(cfg.ZoneID)

	return errs
}

// finalize resolves the console URL from host and port.
func (u *UniFiConfig) finalize() {
	if u.URL == "" && u.Host != "" {
		u.URL = unifi.BaseURL(u.Host, u.Port)
	}
	u.URL = strings.TrimSuffix(u.URL, "/")
}

// validateUniFiConfig checks the settings the unifi source needs.
func validateUniFiConfig(u *UniFiConfig) []string {
	var errs []string

	if u.URL == "" {
		errs = append(errs, "UNIFI_IP: required (or set UNIFI_URL)")
	} else if parsed, err := url.Parse(u.URL); err != nil || parsed.Host == "" {
		errs = append(errs, fmt.Sprintf("UNIFI_URL: invalid URL %q", u.URL))
	}
	if u.Port < 1 || u.Port > 65535 {
		errs = append(errs, fmt.Sprintf("UNIFI_PORT: must be between 1 and 65535, got %d", u.Port))
	}
	if u.APIKey == "" {
		if u.Username == "" {
			errs = append(errs, "UNIFI_USER: required unless UNIFI_API_KEY is set")
		}
		if u.Password == "" {
			errs = append(errs, "UNIFI_PASS: required unless UNIFI_API_KEY is set")
		}
	}
	if u.Retries < 0 {
		errs = append(errs, fmt.Sprintf("UNIFI_RETRIES: must be non-negative, got %d", u.Retries))
	}

	return errs
}

// validateRoute53Config checks the provider settings.
func validateRoute53Config(r *Route53Config) []string {
	var errs []string

	if r.ZoneID == "" {
		errs = append(errs, "ROUTE53_ZONE_ID: required")
	}
	if r.TTL < 1 {
		errs = append(errs, fmt.Sprintf("ROUTE53_TTL: must be at least 1, got %d", r.TTL))
	}
	if (r.AccessKeyID == "") != (r.SecretAccessKey == "") {
		errs = append(errs, "ROUTE53_ACCESS_KEY_ID and ROUTE53_SECRET_ACCESS_KEY must be set together")
	}
	if r.Endpoint != "" {
		if parsed, err := url.Parse(r.Endpoint); err != nil || parsed.Host == "" {
			errs = append(errs, fmt.Sprintf("ROUTE53_ENDPOINT: invalid URL %q", r.Endpoint))
		}
	}

	return errs
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
