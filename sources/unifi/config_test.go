package unifi

import "testing"

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "password login",
			config: Config{URL: "https://192.168.1.1", Username: "admin", Password: "secret"},
		},
		{
			name:   "API key only",
			config: Config{URL: "https://192.168.1.1", APIKey: "key"},
		},
		{
			name:    "missing URL",
			config:  Config{Username: "admin", Password: "secret"},
			wantErr: true,
		},
		{
			name:    "URL without scheme",
			config:  Config{URL: "192.168.1.1", Username: "admin", Password: "secret"},
			wantErr: true,
		},
		{
			name:    "missing password",
			config:  Config{URL: "https://192.168.1.1", Username: "admin"},
			wantErr: true,
		},
		{
			name:    "negative retries",
			config:  Config{URL: "https://192.168.1.1", APIKey: "key", Retries: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"192.168.1.1", 443, "https://192.168.1.1:443"},
		{"192.168.1.1", 0, "https://192.168.1.1:443"},
		{"unifi.lan", 8443, "https://unifi.lan:8443"},
		{"fd00::1", 443, "https://[fd00::1]:443"},
	}

	for _, tt := range tests {
		if got := BaseURL(tt.host, tt.port); got != tt.want {
			t.Errorf("BaseURL(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestConfig_Paths(t *testing.T) {
	cfg := Config{URL: "https://192.168.1.1/", Site: "", APIKey: "key"}
	cfg.applyDefaults()

	if cfg.URL != "https://192.168.1.1" {
		t.Errorf("URL = %q, want trailing slash trimmed", cfg.URL)
	}
	if cfg.Site != DefaultSite || cfg.WAN != DefaultWAN {
		t.Errorf("defaults = (%q, %q), want (%q, %q)", cfg.Site, cfg.WAN, DefaultSite, DefaultWAN)
	}

	if got := cfg.loginPath(); got != "/api/auth/login" {
		t.Errorf("loginPath() = %q", got)
	}
	if got := cfg.devicePath(); got != "/proxy/network/api/s/default/stat/device" {
		t.Errorf("devicePath() = %q", got)
	}

	cfg.Legacy = true
	cfg.Site = "branch office"
	if got := cfg.loginPath(); got != "/api/login" {
		t.Errorf("legacy loginPath() = %q", got)
	}
	if got := cfg.logoutPath(); got != "/api/logout" {
		t.Errorf("legacy logoutPath() = %q", got)
	}
	if got := cfg.devicePath(); got != "/api/s/branch%20office/stat/device" {
		t.Errorf("legacy devicePath() = %q", got)
	}
}
