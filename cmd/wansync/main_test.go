package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"gitlab.bluewillows.net/root/wansync/internal/config"
	"gitlab.bluewillows.net/root/wansync/internal/reconciler"
	"gitlab.bluewillows.net/root/wansync/pkg/provider"
	"gitlab.bluewillows.net/root/wansync/pkg/source"
)

func TestParseFlags_Defaults(t *testing.T) {
	f, err := parseFlags(nil, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}

	want := &flags{envFile: config.DefaultEnvFile}
	if diff := cmp.Diff(want, f, cmp.AllowUnexported(flags{})); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFlags_Values(t *testing.T) {
	f, err := parseFlags([]string{
		"--config", "/etc/wansync.yml",
		"--env-file", "/run/secrets/wansync.env",
		"--interval", "5m",
		"--dry-run",
	}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}

	want := &flags{
		configFile:      "/etc/wansync.yml",
		envFile:         "/run/secrets/wansync.env",
		envFileRequired: true,
		interval:        5 * time.Minute,
		intervalSet:     true,
		dryRun:          true,
	}
	if diff := cmp.Diff(want, f, cmp.AllowUnexported(flags{})); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--zone", "Z1"}},
		{"bad duration", []string{"--interval", "soon"}},
		{"negative interval", []string{"--interval", "-1m"}},
		{"once with interval", []string{"--once", "--interval", "1m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseFlags(tt.args, &bytes.Buffer{}); err == nil {
				t.Errorf("parseFlags(%v) should fail", tt.args)
			}
		})
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name         string
		base         time.Duration
		flags        flags
		wantInterval time.Duration
		wantDryRun   bool
	}{
		{"no flags", time.Minute, flags{}, time.Minute, false},
		{"interval overrides", 0, flags{interval: 10 * time.Minute, intervalSet: true}, 10 * time.Minute, false},
		{"once forces one-shot", time.Minute, flags{once: true}, 0, false},
		{"dry run", 0, flags{dryRun: true}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Global: &config.GlobalConfig{Interval: tt.base}}
			applyFlags(cfg, &tt.flags)

			if cfg.Global.Interval != tt.wantInterval {
				t.Errorf("Interval = %s, want %s", cfg.Global.Interval, tt.wantInterval)
			}
			if cfg.Global.DryRun != tt.wantDryRun {
				t.Errorf("DryRun = %v, want %v", cfg.Global.DryRun, tt.wantDryRun)
			}
		})
	}
}

func TestBuildTargets(t *testing.T) {
	records := []config.RecordConfig{
		{ZoneID: "Z123", Name: "home.example.com.", Type: provider.RecordTypeA, TTL: 300},
		{ZoneID: "Z123", Name: "home.example.com.", Type: provider.RecordTypeAAAA, TTL: 60},
	}

	want := []reconciler.Target{
		{ZoneID: "Z123", Name: "home.example.com.", Type: provider.RecordTypeA, TTL: 300},
		{ZoneID: "Z123", Name: "home.example.com.", Type: provider.RecordTypeAAAA, TTL: 60},
	}
	if diff := cmp.Diff(want, buildTargets(records)); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
}

func TestNewSourceRegistry(t *testing.T) {
	cfg := &config.Config{Global: &config.GlobalConfig{HTTPTimeout: time.Second}}

	registry, err := newSourceRegistry(cfg, slog.Default())
	if err != nil {
		t.Fatalf("newSourceRegistry() error = %v", err)
	}

	got := registry.Names()
	want := []string{config.SourceOpenDNS, config.SourceUniFi, config.SourceWeb}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("registered sources mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRun_ConfigErrorExitsTwo(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(configPath, []byte("unknown_section: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	var stderr bytes.Buffer
	code := run([]string{"--config", configPath, "--env-file", envPath}, &stderr)

	if code != exitConfigError {
		t.Errorf("run() = %d, want %d", code, exitConfigError)
	}
	if !strings.Contains(stderr.String(), "wansync:") {
		t.Errorf("stderr = %q, want an error message", stderr.String())
	}
}

func TestRun_FlagErrorExitsTwo(t *testing.T) {
	var stderr bytes.Buffer
	if code := run([]string{"--once", "--interval", "1m"}, &stderr); code != exitConfigError {
		t.Errorf("run() = %d, want %d", code, exitConfigError)
	}
}

type stubSource struct {
	obs source.Observation
	err error
}

func (s stubSource) Name() string { return "stub" }
func (s stubSource) Ping(context.Context) error { return nil }
func (s stubSource) Open(context.Context) (source.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	return stubSession{obs: s.obs}, nil
}

type stubSession struct{ obs source.Observation }

func (s stubSession) WANStatus(context.Context) (source.Observation, error) { return s.obs, nil }
func (s stubSession) Close(context.Context) error { return nil }

type stubProvider struct{ value string }

func (p stubProvider) Name() string { return "stub" }
func (p stubProvider) Ping(context.Context) error { return nil }
func (p stubProvider) GetRecord(_ context.Context, zoneID, name string, rt provider.RecordType) (*provider.Record, error) {
	return &provider.Record{ZoneID: zoneID, Name: name, Type: rt, Value: p.value, TTL: 300}, nil
}
func (p stubProvider) UpsertRecord(context.Context, provider.Record) error { return nil }

func TestRunOnce_ExitCodes(t *testing.T) {
	targets := []reconciler.Target{{ZoneID: "Z123", Name: "home.example.com.", Type: provider.RecordTypeA, TTL: 300}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name string
		src  source.Source
		want int
	}{
		{"unchanged", stubSource{obs: source.Observation{IPv4: "203.0.113.5"}}, exitOK},
		{"updated", stubSource{obs: source.Observation{IPv4: "203.0.113.9"}}, exitOK},
		{"gateway login fails", stubSource{err: fmt.Errorf("%w: bad password", source.ErrAuth)}, exitPassFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := reconciler.New(tt.src, stubProvider{value: "203.0.113.5"}, targets, reconciler.WithLogger(logger))

			var out bytes.Buffer
			if got := runOnce(context.Background(), rec, logger, &out); got != tt.want {
				t.Errorf("runOnce() = %d, want %d", got, tt.want)
			}
			if !strings.Contains(out.String(), "Reconciliation complete") {
				t.Errorf("summary missing from output: %q", out.String())
			}
		})
	}
}
