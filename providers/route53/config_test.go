package route53

import (
	"errors"
	"testing"

	"gitlab.bluewillows.net/root/wansync/pkg/provider"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "zone only uses default credential chain",
			config: Config{ZoneID: "Z0123456789"},
		},
		{
			name:   "static credentials",
			config: Config{ZoneID: "Z0123456789", AccessKeyID: "AKID", SecretAccessKey: "secret"},
		},
		{
			name:    "missing zone",
			config:  Config{},
			wantErr: true,
		},
		{
			name:    "prefix only",
			config:  Config{ZoneID: "/hostedzone/"},
			wantErr: true,
		},
		{
			name:    "access key without secret",
			config:  Config{ZoneID: "Z0123456789", AccessKeyID: "AKID"},
			wantErr: true,
		},
		{
			name:    "relative endpoint",
			config:  Config{ZoneID: "Z0123456789", Endpoint: "localhost"},
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

func TestNormalizeZoneID(t *testing.T) {
	tests := map[string]string{
		"Z0123456789":             "Z0123456789",
		"/hostedzone/Z0123456789": "Z0123456789",
		"hostedzone/Z0123456789":  "Z0123456789",
		" Z0123456789 ":           "Z0123456789",
	}
	for in, want := range tests {
		if got := NormalizeZoneID(in); got != want {
			t.Errorf("NormalizeZoneID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{ZoneID: "/hostedzone/Z1"}
	cfg.applyDefaults()

	if cfg.ZoneID != "Z1" {
		t.Errorf("ZoneID = %q, want %q", cfg.ZoneID, "Z1")
	}
	if cfg.Region != DefaultRegion {
		t.Errorf("Region = %q, want %q", cfg.Region, DefaultRegion)
	}
	if cfg.Comment != DefaultComment {
		t.Errorf("Comment = %q, want %q", cfg.Comment, DefaultComment)
	}
	if cfg.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", cfg.MaxRetries, DefaultMaxRetries)
	}
	if cfg.WaitTimeout != DefaultWaitTimeout {
		t.Errorf("WaitTimeout = %v, want %v", cfg.WaitTimeout, DefaultWaitTimeout)
	}
}

func TestConfig_ValidateCollectsProblems(t *testing.T) {
	cfg := Config{AccessKeyID: "AKID", MaxRetries: -1}

	var cerr *provider.ConfigError
	if !errors.As(cfg.Validate(), &cerr) {
		t.Fatalf("Validate() should return *provider.ConfigError")
	}
	if cerr.Provider != ProviderName {
		t.Errorf("Provider = %q, want %q", cerr.Provider, ProviderName)
	}
	if len(cerr.Problems) != 3 {
		t.Errorf("Problems = %v, want 3 entries", cerr.Problems)
	}
}
