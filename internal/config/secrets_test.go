package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSecret(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGetEnvOrFile(t *testing.T) {
	tests := []struct {
		name   string
		direct string
		file   func(t *testing.T) string
		want   string
	}{
		{
			name:   "direct value",
			direct: "hunter2",
			want:   "hunter2",
		},
		{
			name: "file value is trimmed",
			file: func(t *testing.T) string { return writeSecret(t, "from-file\n") },
			want: "from-file",
		},
		{
			name:   "file wins over direct value",
			direct: "hunter2",
			file:   func(t *testing.T) string { return writeSecret(t, "from-file") },
			want:   "from-file",
		},
		{
			name:   "unreadable file falls back",
			direct: "hunter2",
			file:   func(*testing.T) string { return "/nonexistent/unifi_pass" },
			want:   "hunter2",
		},
		{
			name: "neither set",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("UNIFI_PASS", tt.direct)
			t.Setenv("UNIFI_PASS_FILE", "")
			if tt.file != nil {
				t.Setenv("UNIFI_PASS_FILE", tt.file(t))
			}

			if got := getEnvOrFile("UNIFI_PASS", "UNIFI_PASS_FILE"); got != tt.want {
				t.Errorf("getEnvOrFile() = %q, want %q", got, tt.want)
			}
			if got := getEnvWithFileFallback("UNIFI_PASS"); got != tt.want {
				t.Errorf("getEnvWithFileFallback() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input    string
		defVal   bool
		expected bool
	}{
		{"true", false, true},
		{"TRUE", false, true},
		{"True", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"ON", false, true},
		{"false", true, false},
		{"FALSE", true, false},
		{"0", true, false},
		{"no", true, false},
		{"off", true, false},
		{"", false, false},
		{"", true, true},
		{"invalid", false, false},
		{"invalid", true, true},
		{"  true  ", false, true},
	}

	for _, tc := range tests {
		got := parseBool(tc.input, tc.defVal)
		if got != tc.expected {
			t.Errorf("parseBool(%q, %v) = %v, want %v", tc.input, tc.defVal, got, tc.expected)
		}
	}
}

func TestLookupEnv_DistinguishesEmpty(t *testing.T) {
	const key = "TEST_WANSYNC_LOOKUP"

	t.Setenv(key, "")
	if v, ok := lookupEnv(key); !ok || v != "" {
		t.Errorf("lookupEnv() = (%q, %v), want (\"\", true)", v, ok)
	}

	os.Unsetenv(key)
	if _, ok := lookupEnv(key); ok {
		t.Error("lookupEnv() reported an unset variable as set")
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "TEST_WANSYNC_DOTENV"
	const preset = "TEST_WANSYNC_DOTENV_PRESET"

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := key + "=from-file\n" + preset + "=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(key, "")
	os.Unsetenv(key)
	t.Setenv(preset, "from-env")

	loaded, err := loadDotEnv(path, true)
	if err != nil {
		t.Fatalf("loadDotEnv() error = %v", err)
	}
	if !loaded {
		t.Error("loadDotEnv() loaded = false, want true")
	}
	if got := os.Getenv(key); got != "from-file" {
		t.Errorf("%s = %q, want %q", key, got, "from-file")
	}
	if got := os.Getenv(preset); got != "from-env" {
		t.Errorf("%s = %q, want %q (existing variables win)", preset, got, "from-env")
	}
}

func TestLoadDotEnv_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.env")

	loaded, err := loadDotEnv(missing, false)
	if err != nil || loaded {
		t.Errorf("optional loadDotEnv() = (%v, %v), want (false, nil)", loaded, err)
	}

	if _, err := loadDotEnv(missing, true); err == nil {
		t.Error("required loadDotEnv() expected error for a missing file")
	}

	if loaded, err := loadDotEnv("", true); err != nil || loaded {
		t.Errorf("loadDotEnv(\"\") = (%v, %v), want (false, nil)", loaded, err)
	}
}
