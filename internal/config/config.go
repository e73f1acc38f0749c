package config

import (
	"gitlab.bluewillows.net/root/wansync/sources/opendns"
	"gitlab.bluewillows.net/root/wansync/sources/web"
)

// Config holds the complete application configuration. It is built once by
// Load and then only read.
type Config struct {
	Global  *GlobalConfig
	UniFi   UniFiConfig
	Web     web.Config
	OpenDNS opendns.Config
	Route53 Route53Config
	Records []RecordConfig

	// ConfigFile is the file that was loaded, if any.
	ConfigFile string
	// EnvFile is the .env file that was loaded, if any.
	EnvFile string
}

// DaemonMode reports whether passes repeat on an interval.
func (c *Config) DaemonMode() bool {
	return c.Global.Interval > 0
}
